package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/makegraph/pkg/config"
	"github.com/matzehuels/makegraph/pkg/errors"
	"github.com/matzehuels/makegraph/pkg/makefile"
)

// watchDebounce batches the burst of events one editor save produces.
const watchDebounce = 200 * time.Millisecond

// watchGraph regenerates the graph every time one of the Makefiles it was
// built from changes, until ctx is cancelled. Failed regenerations are
// reported and the previous output is left untouched.
func (c *CLI) watchGraph(ctx context.Context, path string, cfg *config.Config, opts *graphOpts) error {
	logger := loggerFromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create file watcher")
	}
	defer fw.Close()

	ws := &watchSet{watcher: fw, files: map[string]bool{}, dirs: map[string]bool{}}
	regenerate := func() {
		files := []string{absPath(path)}
		result, err := c.generate(ctx, path, cfg, opts)
		if err != nil {
			printError(c.Stderr, "%s", errors.UserMessage(err))
		} else {
			files = watchedFiles(result.Inputs)
			if err := c.checkCycles(cfg, result); err != nil {
				printWarning(c.Stderr, "%s", errors.UserMessage(err))
			}
		}
		ws.update(files, logger.Warn)
	}
	regenerate()

	// Refresh cached dumps only once. Cached entries are checked against the
	// Makefiles they were read from, so an edit always misses.
	opts.refresh = false

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()

	spin := c.watchSpinner(ctx, len(ws.files))
	defer func() { spin.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ws.files[filepath.Clean(event.Name)] && event.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				debounce.Reset(watchDebounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)

		case <-debounce.C:
			spin.Stop()
			logger.Info("Makefile changed, regenerating")
			regenerate()
			spin = c.watchSpinner(ctx, len(ws.files))
		}
	}
}

// watchSpinner shows an idle indicator while waiting for changes. It is
// silent unless stderr is a terminal.
func (c *CLI) watchSpinner(ctx context.Context, n int) *Spinner {
	var w io.Writer = io.Discard
	if f, ok := c.Stderr.(*os.File); ok && term.IsTerminal(f.Fd()) {
		w = c.Stderr
	}
	s := newSpinnerWithContext(ctx, w, fmt.Sprintf("Watching %s for changes", plural(n, "file")))
	s.Start()
	return s
}

// watchSet tracks the Makefiles being watched. fsnotify watches their
// directories so files replaced by an editor's rename stay covered.
type watchSet struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	dirs    map[string]bool
}

func (s *watchSet) update(files []string, warn func(msg any, keyvals ...any)) {
	s.files = make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		s.files[f] = true
		dirs[filepath.Dir(f)] = true
	}

	for dir := range dirs {
		if s.dirs[dir] {
			continue
		}
		if err := s.watcher.Add(dir); err != nil {
			warn("failed to watch directory", "path", dir, "error", err)
			continue
		}
		s.dirs[dir] = true
	}
	for dir := range s.dirs {
		if !dirs[dir] {
			_ = s.watcher.Remove(dir)
			delete(s.dirs, dir)
		}
	}
}

// watchedFiles lists every file the inputs were read from: the included
// files of a scan, or make's MAKEFILE_LIST for a database dump.
func watchedFiles(inputs []*makefile.Input) []string {
	var files []string
	add := func(f string) {
		if f = absPath(f); !slices.Contains(files, f) {
			files = append(files, f)
		}
	}

	for _, in := range inputs {
		add(in.Path)
		for _, f := range in.Files {
			add(f)
		}
		for _, f := range makefile.MakefileList(in.Vars["MAKEFILE_LIST"], filepath.Dir(in.Path)) {
			add(f)
		}
	}
	return files
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
