// Package batch reconciles math across a tree of HTML and markdown files.
//
// HTML files are rewritten in place (or into an output directory) with every
// raw-source math node upgraded to MathML. Markdown files are converted to
// HTML first and written next to the source with an .html extension.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ziadkadry99/mathedit/internal/document"
	"github.com/ziadkadry99/mathedit/internal/engine"
	"github.com/ziadkadry99/mathedit/internal/markdown"
	"github.com/ziadkadry99/mathedit/internal/mathid"
	"github.com/ziadkadry99/mathedit/internal/progress"
	"github.com/ziadkadry99/mathedit/internal/reconcile"
	"github.com/ziadkadry99/mathedit/internal/walker"
)

// Options controls a run.
type Options struct {
	RootDir     string
	OutDir      string // Empty writes next to the sources.
	Include     []string
	Exclude     []string
	Concurrency int
	DryRun      bool // Reconcile but write nothing.
	Incremental bool // Skip files unchanged since the last run.
}

// FileResult is the outcome for one file.
type FileResult struct {
	RelPath string           `json:"rel_path"`
	OutPath string           `json:"out_path"`
	Kind    walker.Kind      `json:"kind"`
	Report  reconcile.Report `json:"report"`
	Written bool             `json:"written"`
}

// Result collects a run's per-file outcomes and errors.
type Result struct {
	Files   []FileResult
	Skipped int
	Errors  []error
}

// Totals sums converted and failed nodes over all files.
func (r *Result) Totals() (converted, failed int) {
	for _, f := range r.Files {
		converted += len(f.Report.Converted)
		failed += len(f.Report.Failed)
	}
	return converted, failed
}

// Runner reconciles files with a shared engine.
type Runner struct {
	caps     *engine.Capabilities
	conv     *markdown.Converter
	reporter progress.Reporter
	logger   *log.Logger
}

// NewRunner returns a runner. A nil reporter or logger is silent.
func NewRunner(caps *engine.Capabilities, reporter progress.Reporter, logger *log.Logger) *Runner {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{caps: caps, conv: markdown.NewConverter(), reporter: reporter, logger: logger}
}

// Run walks opts.RootDir and reconciles every matching file concurrently.
// Per-file failures are collected in the result; only a failed walk, an
// unavailable engine or a state write error is returned as an error.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if _, ok := r.caps.Alternate(); !ok {
		return nil, engine.ErrEngineUnavailable
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: opts.RootDir,
		Include: opts.Include,
		Exclude: opts.Exclude,
	})
	if err != nil {
		return nil, err
	}

	var state *State
	result := &Result{}
	if opts.Incremental {
		state, err = LoadState(opts.RootDir)
		if err != nil {
			return nil, fmt.Errorf("loading batch state: %w", err)
		}
		pending := files[:0]
		for _, f := range files {
			if state.IsFileChanged(f.RelPath, f.ContentHash) {
				pending = append(pending, f)
			} else {
				result.Skipped++
			}
		}
		files = pending
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	total := len(files)
	r.reporter.Start(total)
	defer r.reporter.Finish()

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var processed int64
	hashes := make(map[string]string)

	done := func(relPath string) {
		count := atomic.AddInt64(&processed, 1)
		r.reporter.Update(int(count), relPath)
	}

	var wg sync.WaitGroup
	for _, file := range files {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file.RelPath, ctx.Err()))
			mu.Unlock()
			done(file.RelPath)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(f walker.FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			fr, hash, err := r.processFile(f, opts)
			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", f.RelPath, err))
			} else {
				result.Files = append(result.Files, fr)
				hashes[f.RelPath] = hash
			}
			mu.Unlock()
			done(f.RelPath)
		}(file)
	}
	wg.Wait()

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].RelPath < result.Files[j].RelPath
	})

	if state != nil && !opts.DryRun {
		for path, hash := range hashes {
			state.FileHashes[path] = hash
		}
		if err := state.Save(opts.RootDir); err != nil {
			return result, fmt.Errorf("saving batch state: %w", err)
		}
	}
	return result, nil
}

// processFile reconciles one file and returns the hash its source will have
// once the run is over.
func (r *Runner) processFile(f walker.FileInfo, opts Options) (FileResult, string, error) {
	fr := FileResult{RelPath: f.RelPath, Kind: f.Kind}

	src, err := os.ReadFile(f.Path)
	if err != nil {
		return fr, "", fmt.Errorf("read: %w", err)
	}

	var (
		pg    *Page
		title string
		body  string
	)
	switch f.Kind {
	case walker.KindMarkdown:
		md, err := r.conv.Convert(src)
		if err != nil {
			return fr, "", err
		}
		title, body = md.Title, md.HTML
	default:
		pg, err = ParsePage(string(src))
		if err != nil {
			return fr, "", err
		}
		body = pg.Content()
	}

	doc, err := document.Parse(f.RelPath, body)
	if err != nil {
		return fr, "", err
	}
	ids := mathid.NewAllocator(mathid.NewRegistry(), nil)
	reconcile.AdoptIDs(doc, ids)
	fr.Report = reconcile.New(ids, r.caps, r.logger).Reconcile(doc, "")
	if fr.Report.EngineUnavailable {
		return fr, "", engine.ErrEngineUnavailable
	}

	var out string
	if f.Kind == walker.KindMarkdown {
		out = markdownPage(title, doc.GetData())
	} else if out, err = pg.Render(doc.GetData()); err != nil {
		return fr, "", err
	}

	fr.OutPath = outputPath(f, opts)
	hash := f.ContentHash
	inPlace := fr.OutPath == f.Path
	write := !inPlace || fr.Report.Changed()
	if opts.DryRun || !write {
		return fr, hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(fr.OutPath), 0o755); err != nil {
		return fr, "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(fr.OutPath, []byte(out), 0o644); err != nil {
		return fr, "", fmt.Errorf("write: %w", err)
	}
	fr.Written = true
	if inPlace {
		hash = walker.HashBytes([]byte(out))
	}
	r.logger.Printf("[batch   ] [status=written] %s", fr.OutPath)
	return fr, hash, nil
}

// outputPath maps a source to its destination: markdown becomes .html, and
// OutDir, when set, mirrors the source tree.
func outputPath(f walker.FileInfo, opts Options) string {
	rel := filepath.FromSlash(f.RelPath)
	if f.Kind == walker.KindMarkdown {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
	}
	if opts.OutDir != "" {
		return filepath.Join(opts.OutDir, rel)
	}
	if f.Kind == walker.KindMarkdown {
		return filepath.Join(filepath.Dir(f.Path), filepath.Base(rel))
	}
	return f.Path
}

// Err joins the collected per-file errors, or returns nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return errors.Join(r.Errors...)
}
