package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DirectoryError reports an input directory that cannot be processed.
type DirectoryError struct {
	Dir string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("input directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// HasExt returns a matcher for the given extensions, case-insensitive.
func HasExt(exts ...string) func(string) bool {
	return func(name string) bool {
		ext := strings.ToLower(filepath.Ext(name))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				return true
			}
		}
		return false
	}
}

// Discover lists regular files in dir accepted by match, sorted by name.
// Subdirectories are not descended.
func Discover(dir string, match func(string) bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &DirectoryError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &DirectoryError{Dir: dir, Err: errors.New("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryError{Dir: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if match != nil && !match(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// outcome of one file
type FileResult struct {
	Path    string
	Output  string
	Detail  string
	Err     error
	Elapsed time.Duration
}

func (r FileResult) OK() bool { return r.Err == nil }

// Summary holds per-file results in input order.
type Summary struct {
	Results   []FileResult
	Succeeded int
	Total     int
}

// Func processes one file. It fills in Output and Detail and returns the
// error that marks the file failed.
type Func func(ctx context.Context, path string, res *FileResult) error

// Run processes files with at most jobs running at once. A failing file
// never stops the others; only ctx cancellation skips files not yet started.
func Run(ctx context.Context, files []string, jobs int, fn Func) Summary {
	if jobs <= 0 {
		jobs = 1
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, path := range files {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			start := time.Now()
			results[i].Err = fn(gctx, path, &results[i])
			results[i].Elapsed = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Results: results, Total: len(files)}
	for _, r := range results {
		if r.OK() {
			summary.Succeeded++
		}
	}
	return summary
}
