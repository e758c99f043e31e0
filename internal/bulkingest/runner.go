package bulkingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agentic-rag/internal/infra/resilience"
	"agentic-rag/internal/usecase"

	"golang.org/x/sync/errgroup"
)

const perDocumentTimeout = 60 * time.Second

// Runner walks a directory of text documents and feeds them through the
// ingestor with bounded concurrency. Progress is checkpointed through a
// cursor so an interrupted run resumes after the last fully completed file.
type Runner struct {
	ingestor *usecase.Ingestor
	cursor   *CursorManager
	workers  int
	policy   resilience.RetryPolicy
	logger   *slog.Logger
}

func NewRunner(ingestor *usecase.Ingestor, cursor *CursorManager, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		ingestor: ingestor,
		cursor:   cursor,
		workers:  workers,
		policy: resilience.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		logger: logger,
	}
}

// Run ingests every matching file under dir, in path order. Returns the
// number of documents ingested in this run.
func (r *Runner) Run(ctx context.Context, dir string, extensions []string) (int, error) {
	if err := r.cursor.Lock(); err != nil {
		return 0, err
	}
	defer func() { _ = r.cursor.Unlock() }()

	cursor, err := r.cursor.Load()
	if err != nil {
		return 0, err
	}

	paths, err := collectFiles(dir, extensions)
	if err != nil {
		return 0, err
	}
	if !cursor.IsEmpty() {
		paths = skipThrough(paths, cursor.LastPath)
		r.logger.Info("resuming_bulk_ingest",
			slog.String("last_path", cursor.LastPath),
			slog.Int("remaining", len(paths)))
	}
	if len(paths) == 0 {
		return 0, nil
	}

	type outcome struct {
		index int
		err   error
	}

	jobs := make(chan int)
	results := make(chan outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.workers; w++ {
		g.Go(func() error {
			for index := range jobs {
				err := r.ingestOne(gctx, paths[index])
				results <- outcome{index: index, err: err}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Checkpointing runs alongside the workers: the cursor only advances to
	// a file once every file before it has also completed, so a resume
	// never skips work.
	done := make(chan struct{})
	completed := make(map[int]bool, len(paths))
	frontier := 0
	ingested := 0
	go func() {
		defer close(done)
		for range paths {
			out, ok := <-results
			if !ok {
				return
			}
			if out.err != nil {
				continue
			}
			ingested++
			completed[out.index] = true
			advanced := 0
			for completed[frontier] {
				delete(completed, frontier)
				frontier++
				advanced++
			}
			if advanced > 0 {
				cursor.LastPath = paths[frontier-1]
				cursor.ProcessedCount += advanced
				if err := r.cursor.Save(cursor); err != nil {
					r.logger.Warn("cursor_save_failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	workerErr := g.Wait()
	close(results)
	<-done

	if workerErr != nil {
		return ingested, fmt.Errorf("bulk ingest aborted after %d documents: %w", ingested, workerErr)
	}
	return ingested, nil
}

func (r *Runner) ingestOne(ctx context.Context, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sourceURI := "file://" + path

	dctx, cancel := context.WithTimeout(ctx, perDocumentTimeout)
	defer cancel()

	return r.policy.Execute(dctx, r.logger, "bulk_ingest_document", nil, func(ctx context.Context) error {
		_, err := r.ingestor.IngestDocument(ctx, sourceURI, title, string(body))
		return err
	})
}

func collectFiles(dir string, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// skipThrough drops every path up to and including lastPath.
func skipThrough(paths []string, lastPath string) []string {
	idx := sort.SearchStrings(paths, lastPath)
	if idx < len(paths) && paths[idx] == lastPath {
		return paths[idx+1:]
	}
	return paths[idx:]
}
