package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"financial_extractor/pkg/core/export"
	"financial_extractor/pkg/core/session"
)

var convertOut string

var convertCmd = &cobra.Command{
	Use:   "convert <file.json>...",
	Short: "Rewrite legacy or canonical JSON sources in the canonical envelope",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := runConvert(cmd.Context(), session.New(session.Options{}), args, convertOut)
		if err != nil {
			return err
		}
		for _, path := range written {
			cmd.Println(path)
		}
		return nil
	},
}

func runConvert(ctx context.Context, ctrl *session.Controller, paths []string, outDir string) ([]string, error) {
	if err := importFiles(ctx, ctrl, paths); err != nil {
		return nil, err
	}

	var written []string
	names := export.Names{}
	for _, src := range ctrl.Sources() {
		f, err := export.Source(src, export.Options{})
		if err != nil {
			return written, err
		}
		path, err := writeOutput(outDir, names.Claim(f.Name), f.Content)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	zap.L().Info("conversion complete", zap.Int("files", len(written)), zap.String("out", outDir))
	return written, nil
}

func init() {
	convertCmd.Flags().StringVar(&convertOut, "out", "converted", "output directory")
	rootCmd.AddCommand(convertCmd)
}
