package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scansync/internal/vision"
	"scansync/store"
)

// newScanCmd creates the scan command: photo in, stored label out.
func newScanCmd() *cobra.Command {
	var notes string

	scanCmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Extract fields from a label photo and store the result",
		Long: `Send a photo to the vision extraction service and store the extracted
label. Extraction errors (missing credentials, quota, network) are
surfaced as-is; nothing is retried.

A photo classified as an order document is rejected here, use
'scansync orders add' for manual order entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			dataURI, err := readImageAsDataURI(args[0])
			if err != nil {
				return err
			}

			extractor := vision.NewClient(
				app.Config.Vision.Endpoint,
				app.Config.Vision.APIKey,
				app.Config.Vision.Model,
			)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			fields, err := extractor.Extract(ctx, dataURI)
			if err != nil {
				return err
			}

			if fields.DocumentType == vision.DocumentOrder {
				return fmt.Errorf("photo looks like an order document, use 'scansync orders add'")
			}

			rec := store.LabelRecord{
				Reference:     fields.Reference,
				Length:        fields.Length,
				Quantity:      fields.Quantity,
				OriginalImage: dataURI,
				Notes:         notes,
			}
			if err := app.Store.SaveLabel(&rec); err != nil {
				return err
			}

			fmt.Println(successStyle.Render("Saved label ") + rec.ID)
			fmt.Printf("  reference: %s\n", rec.Reference)
			if rec.Length != "" {
				fmt.Printf("  length:    %s\n", rec.Length)
			}
			if rec.Quantity != "" {
				fmt.Printf("  quantity:  %s\n", rec.Quantity)
			}
			return nil
		},
	}

	scanCmd.Flags().StringVar(&notes, "notes", "", "notes to attach to the label")
	return scanCmd
}

// readImageAsDataURI loads an image file as a self-describing data URI, the
// representation records carry everywhere.
func readImageAsDataURI(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", path, err)
	}

	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".png":
		mime = "image/png"
	case ".webp":
		mime = "image/webp"
	default:
		return "", fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
