package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/billparse/internal/billpipe"
	"github.com/MeKo-Tech/billparse/internal/export"
	"github.com/MeKo-Tech/billparse/internal/fetch"
)

// documentProcessor is the part of the pipeline the extract command needs.
type documentProcessor interface {
	ProcessURL(ctx context.Context, url string, obs billpipe.Observer) (*billpipe.Result, error)
	ProcessDocument(ctx context.Context, doc *fetch.Document, obs billpipe.Observer) (*billpipe.Result, error)
}

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract <url|file>",
	Short: "Extract line items from a bill document",
	Long: `Run the extraction pipeline on a document URL or a local image/PDF file and
print the result.

Examples:
  billparse extract https://example.com/bill.pdf
  billparse extract bill.png --format yaml
  billparse extract bill.pdf --format csv --output items.csv --progress`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		progress, _ := cmd.Flags().GetBool("progress")

		cfg := GetConfig()
		logger := slog.Default()

		pl, closePipeline, err := buildPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = closePipeline() }()

		var obs billpipe.Observer = billpipe.NoOpObserver{}
		if progress {
			obs = billpipe.NewConsoleObserver(cmd.ErrOrStderr())
		}

		out := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}
		return runExtract(cmd.Context(), pl, args[0], format, out, obs)
	},
}

// runExtract processes source (a URL or a file path) and writes the result.
func runExtract(ctx context.Context, p documentProcessor, source, format string, out io.Writer, obs billpipe.Observer) error {
	if !isSupportedFormat(format) {
		return fmt.Errorf("unsupported output format: %s (must be one of: %s)", format, strings.Join(export.Formats, ", "))
	}

	var (
		res *billpipe.Result
		err error
	)
	if fetch.IsURL(source) {
		res, err = p.ProcessURL(ctx, source, obs)
	} else {
		var doc *fetch.Document
		doc, err = fetch.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", source, err)
		}
		res, err = p.ProcessDocument(ctx, doc, obs)
	}
	if err != nil {
		return err
	}

	for _, f := range res.Skipped {
		slog.Warn("page skipped", "page", f.Page, "kind", f.Kind, "error", f.Message)
	}
	if res.Partial {
		slog.Warn("request deadline reached, result is partial", "summary", res.Summary())
	}

	return export.Write(out, format, export.Response{
		IsSuccess:  true,
		TokenUsage: res.Usage,
		Data:       res.Document,
	})
}

func isSupportedFormat(format string) bool {
	for _, f := range export.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("format", "f", export.FormatJSON, "output format: json, yaml, csv or xlsx")
	extractCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	extractCmd.Flags().Bool("progress", false, "print per-page progress to stderr")
	addPipelineFlags(extractCmd)
	bindFlags(extractCmd, nil)
}
