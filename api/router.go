// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts h under /api.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Post("/documents", h.uploadDocument)
			r.Get("/documents", h.listDocuments)
			r.Get("/documents/{documentID}", h.getDocument)
			r.Get("/documents/{documentID}/chunks", h.listChunks)
			r.Post("/documents/{documentID}/reindex", h.reindexDocument)
			r.Delete("/documents/{documentID}", h.deleteDocument)

			r.Get("/search", h.search)

			r.Post("/chat", h.chat)
			r.Get("/chat/sessions", h.listSessions)
			r.Get("/chat/sessions/{sessionID}/messages", h.sessionMessages)
		})
	})

	return r
}
