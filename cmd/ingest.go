package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/corpus/internal/app"
	"github.com/corvid-labs/corpus/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var (
		tenantID    string
		userID      string
		tags        []string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index files or directories into the repository",
		Long: `Reads each path, extracts its text, enriches it through the analysis
agent, and stores the result. Directories are walked recursively. Files the
extractors cannot decode are reported and skipped; the batch continues.

Only one ingest batch runs at a time per machine; concurrent invocations
wait on a file lock.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runIngest(ctx, a, args, ingestFlags{
					tenantID:    tenantID,
					userID:      userID,
					tags:        tags,
					contentType: contentType,
				})
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the content belongs to")
	cmd.Flags().StringVar(&userID, "user", "", "user the content is attributed to")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag to associate (repeatable)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "force a content type instead of inferring from the filename")
	return cmd
}

type ingestFlags struct {
	tenantID    string
	userID      string
	tags        []string
	contentType string
}

func runIngest(ctx context.Context, a *app.App, paths []string, flags ingestFlags) error {
	unlock, err := acquireIngestLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	files, err := collectFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found under %v", paths)
	}
	a.Logger.Info("starting ingest batch", "files", len(files))

	parallelism := a.Config.IngestParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var indexed, skipped int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	results := make([]error, len(files))

	for i, path := range files {
		g.Go(func() error {
			results[i] = ingestOne(gctx, a, path, flags)
			// Per-file failures are collected, not fatal; only context
			// cancellation aborts the batch.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, err := range results {
		if err != nil {
			skipped++
			a.Logger.Warn("file skipped", "path", files[i], "error", err)
			continue
		}
		indexed++
	}

	fmt.Printf("Indexed %d file(s), skipped %d\n", indexed, skipped)
	return nil
}

func ingestOne(ctx context.Context, a *app.App, path string, flags ingestFlags) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	_, err = a.Pipeline.Ingest(ctx, ingest.Request{
		Raw:         raw,
		Filename:    filepath.Base(path),
		ContentType: flags.contentType,
		Source:      abs,
		Tags:        flags.tags,
		UserID:      flags.userID,
		TenantID:    flags.tenantID,
	})
	return err
}

// collectFiles expands the given paths into a flat list of regular files,
// walking directories recursively. Hidden files and directories are
// skipped.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if name != "." && name != ".." && len(name) > 0 && name[0] == '.' {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// acquireIngestLock serializes ingest batches across processes with a lock
// file under the user's config directory.
func acquireIngestLock(ctx context.Context) (func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	lockPath := filepath.Join(home, ".corpus", "ingest.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, err
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingest batch holds the lock at %s", lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: releasing ingest lock: %v\n", err)
		}
	}, nil
}
