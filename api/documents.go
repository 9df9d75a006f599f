package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/storage"
)

// ownedDocument loads a document visible to the caller. Documents of other
// users are reported as not found.
func (h *Handler) ownedDocument(ctx context.Context, id string) (*core.Document, error) {
	doc, err := h.Documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UploaderID != userFrom(ctx) {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, ingestion.ErrFileTooLarge)
			return
		}
		h.fail(w, r, ErrMissingFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.Pipeline.Upload(r.Context(), ingestion.UploadRequest{
		Filename:   header.Filename,
		Title:      r.FormValue("title"),
		MimeType:   header.Header.Get("Content-Type"),
		UploaderID: userFrom(r.Context()),
		Data:       data,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newDocumentView(doc))
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter := storage.DocumentFilter{UploaderID: userFrom(r.Context())}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := core.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Statuses = []core.DocumentStatus{status}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	docs, err := h.Documents.ListDocuments(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, newDocumentView(doc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentView(doc))
}

func (h *Handler) listChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	chunks, err := h.Documents.GetChunks(r.Context(), doc.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]chunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, newChunkView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// reindexDocument schedules embedding of the chunks without a vector, or
// with full=true re-embeds every chunk before answering.
func (h *Handler) reindexDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		if h.Reindexer == nil {
			h.fail(w, r, ErrReindexUnavailable)
			return
		}
		result, err := h.Reindexer.Document(r.Context(), doc.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if err := h.Pipeline.Reindex(r.Context(), doc.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": doc.ID, "status": "scheduled"})
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Pipeline.Delete(r.Context(), doc.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
