package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/poiesic/docinx"
	"github.com/poiesic/docinx/api"
	"github.com/poiesic/docinx/chat"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/search"
	"github.com/poiesic/docinx/storage"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	handler, err := api.NewHandler(api.Services{
		Documents: engine.Store,
		Pipeline:  engine.Pipeline,
		Reindexer: engine.Reindexer,
		Searcher:  engine.Search,
		Chat:      engine.Chat,
		Health: func(ctx context.Context) (any, error) {
			return engine.Health(ctx)
		},
	}, api.WithMaxUploadSize(engine.Config().MaxFileSize+1<<20))
	if err != nil {
		return err
	}

	addr := c.String("addr")
	if addr == "" {
		addr = engine.Config().HTTPAddr
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	if !c.Bool("no-worker") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Worker.Run(ctx); err != nil {
				slog.Error("worker stopped", "err", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "backend", engine.Backend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	wg.Wait()
	return errors.Join(err, shutdownErr)
}

func workerCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	return engine.Worker.Run(ctx)
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := c.Context
	out := c.App.Writer
	var docs []*core.Document
	failed := 0
	for _, path := range paths {
		doc, err := uploadFile(ctx, engine.Pipeline, c.String("user"), path)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
			continue
		}
		docs = append(docs, doc)
		fmt.Fprintf(out, "queued\t%s\t%s\n", doc.ID, doc.Filename)
	}

	if c.Bool("wait") && len(docs) > 0 {
		if _, err := engine.Worker.Drain(ctx); err != nil {
			return fmt.Errorf("processing failed: %w", err)
		}
		for _, doc := range docs {
			stored, err := engine.Store.GetDocument(ctx, doc.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", stored.Status, stored.ID, stored.Filename)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be ingested", failed, len(paths))
	}
	return nil
}

func uploadFile(ctx context.Context, pipeline *ingestion.Pipeline, user, path string) (*core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pipeline.Upload(ctx, ingestion.UploadRequest{
		Filename:   filepath.Base(path),
		UploaderID: user,
		Data:       data,
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp := engine.Search.Search(c.Context, search.Query{
		Text:   query,
		UserID: c.String("user"),
		Limit:  c.Int("limit"),
	})
	printSearch(c.App.Writer, resp)
	return nil
}

func printSearch(w io.Writer, resp search.Response) {
	fmt.Fprintf(w, "Search method: %s\n", resp.Method)
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d. [%.3f] %s (chunk %d)\n", i+1, r.Score, r.Document.Title, r.Chunk.Index)
		fmt.Fprintf(w, "   %s\n", excerpt(r.Chunk.Content, 160))
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp := engine.Chat.Send(c.Context, chat.Request{
		UserID:    c.String("user"),
		SessionID: c.String("session"),
		Message:   question,
	})
	out := c.App.Writer
	fmt.Fprintln(out, resp.Reply)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range resp.Sources {
			fmt.Fprintf(out, "  - %s [%.3f, %s]\n", s.DocumentTitle, s.Similarity, s.SearchMethod)
		}
	}
	fmt.Fprintf(out, "\nsession: %s  provider: %s  search: %s\n",
		resp.SessionID, resp.Metadata.ProviderUsed, resp.Metadata.SearchMethod)
	if !resp.Success {
		return fmt.Errorf("chat failed: %s", resp.Error)
	}
	return nil
}

type documentStatus struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Filename      string              `json:"filename"`
	Status        core.DocumentStatus `json:"status"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	UploadedAt    time.Time           `json:"uploaded_at"`
	ProcessedAt   *time.Time          `json:"processed_at,omitempty"`
	Chunks        int                 `json:"chunks"`
	Embedded      int                 `json:"embedded_chunks"`
	PendingChunks int                 `json:"pending_chunks"`
}

func statusCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("a document id is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	doc, err := engine.Store.GetDocument(c.Context, id)
	if err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	stats, err := engine.Store.ChunkStats(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, documentStatus{
		ID:            doc.ID,
		Title:         doc.Title,
		Filename:      doc.Filename,
		Status:        doc.Status,
		ErrorMessage:  doc.ErrorMessage,
		UploadedAt:    doc.UploadedAt,
		ProcessedAt:   doc.ProcessedAt,
		Chunks:        stats.Total,
		Embedded:      stats.Embedded,
		PendingChunks: stats.Missing(),
	})
}

func reindexCommand(c *cli.Context) error {
	id := c.Args().First()
	all := c.Bool("all")
	if (id == "") == !all {
		return errors.New("pass either a document id or --all")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.Writer
	if all {
		results, err := engine.Reindexer.All(c.Context, storage.DocumentFilter{UploaderID: c.String("user")})
		for _, r := range results {
			fmt.Fprintf(out, "%s\t%s\t%d/%d embedded\n", r.DocumentID, r.Status, r.Succeeded, r.Total)
		}
		return err
	}

	result, err := engine.Reindexer.Document(c.Context, id)
	if err != nil {
		return fmt.Errorf("reindex %s: %w", id, err)
	}
	return printJSON(out, result)
}

func healthCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	health, err := engine.Health(c.Context)
	if err != nil {
		return err
	}
	if err := printJSON(c.App.Writer, health); err != nil {
		return err
	}
	if health.Status != docinx.HealthOK {
		return fmt.Errorf("system is %s", health.Status)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
