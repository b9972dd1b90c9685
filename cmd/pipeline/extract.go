package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"financial_extractor/pkg/core/export"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/core/validate"
)

var (
	extractPages        string
	extractMode         string
	extractOut          string
	extractMetadataOnly bool
	extractPageSuffix   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Extract numeric facts or charts from a PDF/HTML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := newController()
		if err != nil {
			return err
		}
		path, err := runExtract(cmd.Context(), ctrl, args[0], extractMode, extractPages, extractOut, export.Options{
			MetadataOnly: extractMetadataOnly,
			PageSuffix:   extractPageSuffix,
		})
		if err != nil {
			return err
		}
		cmd.Println(path)
		return nil
	},
}

func runExtract(ctx context.Context, ctrl *session.Controller, docPath, mode, pages, outDir string, opts export.Options) (string, error) {
	doc := session.Document{Path: docPath, FileName: filepath.Base(docPath)}

	var (
		res *session.ExtractResult
		err error
	)
	switch mode {
	case "numeric", "":
		res, err = ctrl.ExtractNumeric(ctx, doc, pages)
	case "chart":
		res, err = ctrl.ExtractCharts(ctx, doc, pages)
	default:
		return "", validate.New("mode", mode, validate.ReasonMalformed, `mode must be "numeric" or "chart"`)
	}
	if err != nil {
		return "", eris.Wrapf(err, "extract %s", docPath)
	}
	if len(res.SkippedPages) > 0 {
		zap.L().Warn("some pages could not be rendered", zap.Ints("pages", res.SkippedPages))
	}

	f, err := export.Source(res.Source, opts)
	if err != nil {
		return "", err
	}
	return writeOutput(outDir, f.Name, f.Content)
}

func init() {
	extractCmd.Flags().StringVar(&extractPages, "pages", "", `page selection such as "1,3,5-7" (default all pages)`)
	extractCmd.Flags().StringVar(&extractMode, "mode", "numeric", "extraction mode: numeric or chart")
	extractCmd.Flags().StringVar(&extractOut, "out", ".", "output directory")
	extractCmd.Flags().BoolVar(&extractMetadataOnly, "metadata-only", false, "omit chart images from the output")
	extractCmd.Flags().BoolVar(&extractPageSuffix, "page-suffix", false, "append the covered page span to the file name")
	rootCmd.AddCommand(extractCmd)
}
