package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events an editor save produces.
const debounce = 100 * time.Millisecond

// watch meshes in to out now and again after every change to in, until
// ctx is done. Build failures are logged and do not stop the loop.
func (c *cli) watch(ctx context.Context, in, out string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	// Editors often save by renaming a temp file over the target, which
	// drops a watch on the file itself.
	if err := w.Add(filepath.Dir(in)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	target := filepath.Clean(in)
	c.log.Info("watching", "file", in, "out", out)
	c.rebuild(ctx, in, out)

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watch error", "error", err)
		case <-timer.C:
			c.rebuild(ctx, in, out)
		}
	}
}

func (c *cli) rebuild(ctx context.Context, in, out string) {
	start := time.Now()
	r, err := c.mesh(ctx, in, out)
	if c.onBuild != nil {
		c.onBuild(err)
	}
	if err != nil {
		c.log.Error("rebuild failed", "file", in, "error", err)
		return
	}
	c.log.Info("rebuilt", "file", in, "out", out, "meshes", len(r.Meshes), "elapsed", time.Since(start))
}
