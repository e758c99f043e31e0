package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agentic-rag/internal/bulkingest"
	"agentic-rag/internal/di"
	"agentic-rag/internal/infra/config"
	"agentic-rag/internal/infra/logger"
	"agentic-rag/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "ragctl",
		Short:        "Operate the retrieval pipeline from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(newIngestCmd(), newAskCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newComponents(ctx context.Context) (*di.Components, *slog.Logger, error) {
	cfg := config.Load()
	log := logger.New()
	slog.SetDefault(log)
	components, err := di.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return components, log, nil
}

func newIngestCmd() *cobra.Command {
	var title string
	var sourceURI string
	var dir string
	var cursorPath string
	var workers int
	var extensions []string

	cmd := &cobra.Command{
		Use:   "ingest [file]...",
		Short: "Chunk, embed, and store documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if dir != "" {
				components, log, err := newComponents(ctx)
				if err != nil {
					return err
				}
				defer components.Close()

				runner := bulkingest.NewRunner(
					components.Ingestor,
					bulkingest.NewCursorManager(cursorPath),
					workers,
					log,
				)
				count, err := runner.Run(ctx, dir, extensions)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d documents ingested\n", dir, count)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("provide files to ingest or --dir")
			}
			components, log, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			for _, path := range args {
				body, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}

				uri := sourceURI
				if uri == "" {
					uri = "file://" + path
				}
				docTitle := title
				if docTitle == "" {
					docTitle = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}

				count, err := components.Ingestor.IngestDocument(ctx, uri, docTitle, string(body))
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
				log.Info("ingested", slog.String("path", path), slog.Int("chunks", count))
				fmt.Printf("%s: %d chunks\n", path, count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (default: file name)")
	cmd.Flags().StringVar(&sourceURI, "source-uri", "", "source URI stored with the chunks (default: file:// path)")
	cmd.Flags().StringVar(&dir, "dir", "", "ingest every matching file under this directory")
	cmd.Flags().StringVar(&cursorPath, "cursor", ".ragctl-ingest-cursor.json", "cursor file for resumable directory ingest")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent ingest workers for directory mode")
	cmd.Flags().StringSliceVar(&extensions, "ext", []string{".txt", ".md"}, "file extensions included in directory mode")
	return cmd
}

func newAskCmd() *cobra.Command {
	var showCitations bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one query through the pipeline and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, _, err := newComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			for event := range components.Pipeline.Run(ctx, args[0], nil, "") {
				switch event.Kind {
				case usecase.EventKindToken:
					fmt.Print(event.Token)
				case usecase.EventKindDegraded:
					fmt.Fprintf(os.Stderr, "[degraded] %s: %s\n", event.Degraded.Stage, event.Degraded.Reason)
				case usecase.EventKindDone:
					fmt.Println()
					if showCitations {
						for _, c := range event.Done.Citations {
							fmt.Printf("[%d] %s\n    %s\n", c.Index, c.ChunkID, c.Snippet)
						}
					}
					fmt.Fprintf(os.Stderr, "verdict: %s\n", event.Done.Verdict)
				case usecase.EventKindFailed:
					return fmt.Errorf("%s: %s", event.Failed.Kind, event.Failed.Message)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCitations, "citations", true, "print citations after the answer")
	return cmd
}
