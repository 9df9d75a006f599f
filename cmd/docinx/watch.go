package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docinx/extract"
	"github.com/poiesic/docinx/ingestion"
	"github.com/urfave/cli/v2"
)

// settleDelay lets an editor or copy finish writing before a file is read.
const settleDelay = 500 * time.Millisecond

// watcher uploads files that appear in or change under one directory.
type watcher struct {
	pipeline *ingestion.Pipeline
	user     string
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func newWatcher(pipeline *ingestion.Pipeline, user string) *watcher {
	return &watcher{
		pipeline: pipeline,
		user:     user,
		logger:   slog.Default().With("component", "watcher"),
		pending:  make(map[string]*time.Timer),
	}
}

// wants reports whether an event names a file worth uploading.
func wants(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if extract.MimeTypeForFilename(event.Name) == "" {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.Mode().IsRegular()
}

// handle debounces repeated writes to the same file into one upload.
func (w *watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !wants(event) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(settleDelay)
		return
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.upload(ctx, path)
	})
}

func (w *watcher) upload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	doc, err := uploadFile(ctx, w.pipeline, w.user, path)
	if err != nil {
		w.logger.Error("upload failed", "path", path, "err", err)
		return
	}
	w.logger.Info("file queued", "path", path, "document_id", doc.ID)
}

// stop cancels uploads that have not started yet.
func (w *watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := c.String("dir")
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Worker.Run(ctx); err != nil {
			slog.Error("worker stopped", "err", err)
		}
	}()

	w := newWatcher(engine.Pipeline, c.String("user"))
	defer w.stop()
	slog.Info("watching directory", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				stop()
				wg.Wait()
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				stop()
				wg.Wait()
				return nil
			}
			slog.Error("watch error", "err", err)
		}
	}
}
