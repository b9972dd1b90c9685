package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"financial_extractor/pkg/core/export"
	"financial_extractor/pkg/core/session"
)

var (
	bundleZip          string
	bundleXLSX         string
	bundleMetadataOnly bool
	bundlePageSuffix   bool
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <file.json>...",
	Short: "Bundle JSON sources into a ZIP archive and/or an XLSX workbook",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBundle(cmd.Context(), session.New(session.Options{}), args, bundleZip, bundleXLSX, export.Options{
			MetadataOnly: bundleMetadataOnly,
			PageSuffix:   bundlePageSuffix,
		})
	},
}

func runBundle(ctx context.Context, ctrl *session.Controller, paths []string, zipPath, xlsxPath string, opts export.Options) error {
	if zipPath == "" && xlsxPath == "" {
		return eris.New("nothing to write: pass --zip and/or --xlsx")
	}
	if err := importFiles(ctx, ctrl, paths); err != nil {
		return err
	}
	sources := ctrl.Sources()

	if zipPath != "" {
		content, err := export.Archive(sources, opts)
		if err != nil {
			return err
		}
		if err := writeFile(zipPath, content); err != nil {
			return err
		}
	}
	if xlsxPath != "" {
		content, err := export.Workbook(sources)
		if err != nil {
			return err
		}
		if err := writeFile(xlsxPath, content); err != nil {
			return err
		}
	}

	zap.L().Info("bundle complete",
		zap.Int("sources", len(sources)),
		zap.String("zip", zipPath),
		zap.String("xlsx", xlsxPath),
	)
	return nil
}

func writeFile(path string, content []byte) error {
	_, err := writeOutput(filepath.Dir(path), filepath.Base(path), content)
	return err
}

func init() {
	bundleCmd.Flags().StringVar(&bundleZip, "zip", "", "write a ZIP archive of canonical JSON files")
	bundleCmd.Flags().StringVar(&bundleXLSX, "xlsx", "", "write an XLSX workbook")
	bundleCmd.Flags().BoolVar(&bundleMetadataOnly, "metadata-only", false, "omit chart images from the archive")
	bundleCmd.Flags().BoolVar(&bundlePageSuffix, "page-suffix", false, "append page spans to archive entry names")
	rootCmd.AddCommand(bundleCmd)
}
