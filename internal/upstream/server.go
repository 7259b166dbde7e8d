// Package upstream is an in-memory implementation of the /v2 item service the
// gateway talks to. It backs tests and the examples/upstream demo binary.
package upstream

import (
	"encoding/json"
	"net/http"
	"sync"

	"fluxgate/internal/item"
	"fluxgate/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server keeps items in insertion order.
type Server struct {
	mu    sync.RWMutex
	order []string
	items map[string]item.Item

	// ErrorStatus and ErrorBody shape the /v2/error response.
	ErrorStatus int
	ErrorBody   string
}

func New(seed ...item.Item) *Server {
	s := &Server{
		items:       make(map[string]item.Item),
		ErrorStatus: http.StatusInternalServerError,
		ErrorBody:   "RuntimeException Occurred.",
	}
	for _, it := range seed {
		s.put(it)
	}
	return s
}

func (s *Server) put(it item.Item) item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if _, ok := s.items[it.ID]; !ok {
		s.order = append(s.order, it.ID)
	}
	s.items[it.ID] = it
	return it
}

func (s *Server) get(id string) (item.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Items returns a snapshot in insertion order.
func (s *Server) Items() []item.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]item.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v2", func(r chi.Router) {
		r.Get("/items", s.listItems)
		r.Post("/items", s.createItem)
		r.Get("/items/{id}", s.getItem)
		r.Put("/items/{id}", s.updateItem)
		r.Delete("/items/{id}", s.deleteItem)
		r.Get("/error", s.fail)
	})
	return r
}

// listItems writes the array element by element, flushing each one.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items := s.Items()
	w.Header().Set("Content-Type", "application/json")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	_, _ = w.Write([]byte("["))
	for i, it := range items {
		if i > 0 {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(it); err != nil {
			logging.L().Warn("upstream: write item", "err", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = w.Write([]byte("]"))
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	it, ok := s.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var it item.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.put(it))
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.get(id); !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	var it item.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	it.ID = id
	writeJSON(w, http.StatusOK, s.put(it))
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if !s.remove(chi.URLParam(r, "id")) {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(s.ErrorStatus)
	_, _ = w.Write([]byte(s.ErrorBody))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
