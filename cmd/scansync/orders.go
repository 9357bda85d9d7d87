package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scansync/store"
)

// newOrdersCmd creates the orders command group.
func newOrdersCmd() *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage sales orders",
	}

	ordersCmd.AddCommand(
		newOrdersListCmd(),
		newOrdersAddCmd(),
		newOrdersDeleteCmd(),
		newOrdersDedupCmd(),
	)

	return ordersCmd
}

func newOrdersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			orders := app.Store.GetOrders()
			if len(orders) == 0 {
				fmt.Println(dimStyle.Render("No orders stored."))
				return nil
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("%d orders", len(orders))))
			for _, rec := range orders {
				when := time.UnixMilli(rec.Timestamp).Format(app.Config.DateFormat)
				line := fmt.Sprintf("  %s  #%s", when, rec.OrderNumber)
				if rec.ClientName != "" {
					line += "  " + rec.ClientName
				}
				if len(rec.Products) > 0 {
					line += dimStyle.Render(fmt.Sprintf("  (%d lines)", len(rec.Products)))
				}
				fmt.Println(line)
				fmt.Println(dimStyle.Render("    " + rec.ID))
			}
			return nil
		},
	}
}

func newOrdersAddCmd() *cobra.Command {
	var rec store.OrderRecord
	var productsPath string

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an order by manual entry",
		Long: `Add an order from flags. Product lines can be supplied as a JSON
file containing an array of objects:

  [{"reference": "10008", "denomination": "Cable 3x1.5", "totalMeters": 100}]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if productsPath != "" {
				raw, err := os.ReadFile(productsPath)
				if err != nil {
					return fmt.Errorf("reading products file: %w", err)
				}
				if err := json.Unmarshal(raw, &rec.Products); err != nil {
					return fmt.Errorf("parsing products file: %w", err)
				}
			}

			if err := app.Store.SaveOrder(&rec); err != nil {
				return err
			}

			fmt.Println(successStyle.Render("Saved order ") + rec.ID)
			return nil
		},
	}

	addCmd.Flags().StringVar(&rec.OrderNumber, "number", "", "order number (required)")
	addCmd.Flags().StringVar(&rec.ClientName, "client", "", "client name")
	addCmd.Flags().StringVar(&rec.ClientNumber, "client-number", "", "client number")
	addCmd.Flags().StringVar(&rec.Date, "date", "", "order date")
	addCmd.Flags().StringVar(&rec.Notes, "notes", "", "notes")
	addCmd.Flags().StringVar(&productsPath, "products", "", "JSON file with product lines")
	_ = addCmd.MarkFlagRequired("number")

	return addCmd
}

func newOrdersDeleteCmd() *cobra.Command {
	var alsoRemote bool

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an order by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			id := args[0]
			if err := app.Store.DeleteOrder(id); err != nil {
				return err
			}

			if alsoRemote {
				remote, err := app.Remote()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := remote.DeleteOrder(ctx, id); err != nil {
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

func newOrdersDedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate orders, keeping the newest per order number",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Store.DedupOrders()
			if err != nil {
				return err
			}

			fmt.Println(successStyle.Render(
				fmt.Sprintf("Removed %d duplicates, %d distinct orders kept.", result.Removed, result.Kept)))
			return nil
		},
	}
}
