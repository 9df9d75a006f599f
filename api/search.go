package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/poiesic/docinx/search"
)

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := search.Query{
		Text:   strings.TrimSpace(params.Get("q")),
		UserID: userFrom(r.Context()),
	}
	if q.Text == "" {
		h.fail(w, r, ErrMissingQuery)
		return
	}
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		q.Limit = n
	}
	if s := params.Get("threshold"); s != "" {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, errors.New("threshold must be between 0 and 1"))
			return
		}
		q.Threshold = float32(f)
	}

	resp := h.Searcher.Search(r.Context(), q)
	view := searchView{
		Query:   q.Text,
		Method:  resp.Method,
		Results: make([]resultView, 0, len(resp.Results)),
	}
	for _, res := range resp.Results {
		view.Results = append(view.Results, resultView{
			DocumentID:    res.Document.ID,
			DocumentTitle: res.Document.Title,
			ChunkID:       res.Chunk.ID,
			Content:       res.Chunk.Content,
			Score:         res.Score,
			Method:        res.Method,
		})
	}
	writeJSON(w, http.StatusOK, view)
}
