package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newLabelsCmd creates the labels command group.
func newLabelsCmd() *cobra.Command {
	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage scanned labels",
	}

	labelsCmd.AddCommand(
		newLabelsListCmd(),
		newLabelsDeleteCmd(),
		newLabelsDedupCmd(),
		newLabelsPackCmd(),
	)

	return labelsCmd
}

func newLabelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List labels, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			labels := app.Store.GetLabels()
			if len(labels) == 0 {
				fmt.Println(dimStyle.Render("No labels stored."))
				return nil
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("%d labels", len(labels))))
			for _, rec := range labels {
				when := time.UnixMilli(rec.Timestamp).Format(app.Config.DateFormat)
				line := fmt.Sprintf("  %s  ref=%s", when, rec.Reference)
				if rec.Length != "" {
					line += fmt.Sprintf("  length=%s", rec.Length)
				}
				if rec.Quantity != "" {
					line += fmt.Sprintf("  qty=%s", rec.Quantity)
				}
				if rec.BoxSize != "" {
					line += fmt.Sprintf("  box=%s", rec.BoxSize)
				}
				fmt.Println(line)
				fmt.Println(dimStyle.Render("    " + rec.ID))
			}
			return nil
		},
	}
}

func newLabelsDeleteCmd() *cobra.Command {
	var alsoRemote bool

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a label by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			id := args[0]
			if err := app.Store.DeleteLabel(id); err != nil {
				return err
			}

			if alsoRemote {
				remote, err := app.Remote()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := remote.DeleteLabel(ctx, id); err != nil {
					return fmt.Errorf("deleted locally but remote delete failed: %w", err)
				}
			}

			fmt.Println(successStyle.Render("Deleted ") + id)
			return nil
		},
	}

	deleteCmd.Flags().BoolVar(&alsoRemote, "remote", false, "also delete the remote document")
	return deleteCmd
}

func newLabelsDedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate labels, keeping the newest per reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Store.DedupLabels()
			if err != nil {
				return err
			}

			fmt.Println(successStyle.Render(
				fmt.Sprintf("Removed %d duplicates, %d distinct labels kept.", result.Removed, result.Kept)))
			return nil
		},
	}
}

func newLabelsPackCmd() *cobra.Command {
	var boxSize, photoPath, notes string

	packCmd := &cobra.Command{
		Use:   "pack <id>",
		Short: "Set packing info on a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			photo := ""
			if photoPath != "" {
				photo, err = readImageAsDataURI(photoPath)
				if err != nil {
					return err
				}
			}

			if err := app.Store.UpdatePacking(args[0], boxSize, photo, notes); err != nil {
				return err
			}

			fmt.Println(successStyle.Render("Packing info updated."))
			return nil
		},
	}

	packCmd.Flags().StringVar(&boxSize, "box", "", "box size")
	packCmd.Flags().StringVar(&photoPath, "photo", "", "packing photo file")
	packCmd.Flags().StringVar(&notes, "notes", "", "packing notes")
	return packCmd
}
