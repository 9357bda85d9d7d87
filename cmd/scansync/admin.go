package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	syncengine "scansync/store/sync"
)

// newExportCmd writes a full JSON snapshot of the local store.
func newExportCmd() *cobra.Command {
	var outPath string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local store as a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := app.Store.ExportJSON()
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = fmt.Sprintf("scansync_export_%s.json", time.Now().Format("2006-01-02"))
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}

			fmt.Println(successStyle.Render("Exported to ") + outPath)
			return nil
		},
	}

	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	return exportCmd
}

// newImportCmd additively imports a snapshot: upsert by id, never deletes.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON snapshot into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}

			labels, orders, err := app.Store.ImportJSON(raw)
			if err != nil {
				return err
			}

			fmt.Println(successStyle.Render(
				fmt.Sprintf("Imported %d labels and %d orders.", labels, orders)))
			return nil
		},
	}
}

// newResetCmd empties the local store. PIN-gated and irreversible.
func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Erase all local data (PIN required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Print("Admin PIN: ")
			pin, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("reading PIN: %w", err)
			}
			if string(pin) != app.Config.AdminPIN {
				return fmt.Errorf("incorrect PIN")
			}

			if err := app.Store.ClearAll(); err != nil {
				return err
			}

			fmt.Println(warnStyle.Render("Local store emptied."))
			return nil
		},
	}
}

// newStatusCmd shows store counts and the engine's resting state.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local store contents and sync configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			labels, err := app.Store.CountLabels()
			if err != nil {
				return err
			}
			orders, err := app.Store.CountOrders()
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render("Local store"))
			fmt.Printf("  Database: %s\n", app.Store.Path())
			fmt.Printf("  Labels:   %d\n", labels)
			fmt.Printf("  Orders:   %d\n", orders)

			fmt.Println(headerStyle.Render("Remote store"))
			if app.Config.Remote.URL == "" {
				fmt.Println(dimStyle.Render("  not configured"))
			} else {
				fmt.Printf("  URL:      %s\n", app.Config.Remote.URL)
				fmt.Printf("  Identity: %s\n", app.Config.Remote.Identity)
			}

			labelTimeout := app.Config.LabelTimeout()
			if labelTimeout == 0 {
				labelTimeout = syncengine.DefaultLabelTimeout
			}
			orderTimeout := app.Config.OrderTimeout()
			if orderTimeout == 0 {
				orderTimeout = syncengine.DefaultOrderTimeout
			}
			fmt.Println(headerStyle.Render("Sync"))
			fmt.Printf("  Label timeout: %s\n", labelTimeout)
			fmt.Printf("  Order timeout: %s\n", orderTimeout)
			return nil
		},
	}
}
