package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fluxgate/internal/item"
	"fluxgate/internal/remote"
	"fluxgate/internal/stream"

	"github.com/go-chi/chi/v5"
)

const ndjson = "application/x-ndjson"

// === Health ===

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Collection ===

func (s *Server) retrieveAll(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, r, s.client.FetchAll(remote.Direct))
}

func (s *Server) exchangeAll(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, r, s.client.FetchAll(remote.Inspected))
}

func (s *Server) errorRetrieve(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, r, s.client.FetchError(remote.Direct))
}

func (s *Server) errorExchange(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, r, s.client.FetchError(remote.Inspected))
}

// listItems and getItem pick the strategy from ?strategy=.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	st, ok := s.strategy(w, r)
	if !ok {
		return
	}
	s.writeItems(w, r, s.client.FetchAll(st))
}

// === Single item ===

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	st, ok := s.strategy(w, r)
	if !ok {
		return
	}
	s.writeItem(w, r, s.client.FetchOne(chi.URLParam(r, "id"), st))
}

func (s *Server) retrieveOne(w http.ResponseWriter, r *http.Request) {
	s.writeItem(w, r, s.client.FetchOne(s.itemID(r), remote.Direct))
}

func (s *Server) exchangeOne(w http.ResponseWriter, r *http.Request) {
	s.writeItem(w, r, s.client.FetchOne(s.itemID(r), remote.Inspected))
}

func (s *Server) retrieveOneOnPool(w http.ResponseWriter, r *http.Request) {
	s.writeItem(w, r, s.client.FetchOneOn(s.itemID(r), s.pool, nil))
}

// === Mutations ===

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var it item.Item
	if err := s.decodeJSON(r, &it); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeItem(w, r, s.client.Create(it))
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var it item.Item
	if err := s.decodeJSON(r, &it); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeItem(w, r, s.client.Update(s.itemID(r), it))
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.client.Delete(s.itemID(r)).Await(r.Context()); err != nil {
		s.writeRemoteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// === Helpers ===

func (s *Server) itemID(r *http.Request) string {
	if id := r.URL.Query().Get("id"); id != "" {
		return id
	}
	return s.defaultID
}

func (s *Server) strategy(w http.ResponseWriter, r *http.Request) (remote.Strategy, bool) {
	st, err := remote.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return st, false
	}
	return st, true
}

func (s *Server) writeItem(w http.ResponseWriter, r *http.Request, m *stream.Mono[item.Item]) {
	it, ok, err := m.Await(r.Context())
	switch {
	case err != nil:
		s.writeRemoteError(w, r, err)
	case !ok:
		s.writeError(w, http.StatusNotFound, "item not found")
	default:
		s.writeJSON(w, http.StatusOK, it)
	}
}

// writeItems streams f as a JSON array, or as NDJSON when the client asks
// for it. The status line is held back until the first element or the
// terminal signal, so a failure before any item still maps to a status code.
// A failure after that leaves the array unterminated.
func (s *Server) writeItems(w http.ResponseWriter, r *http.Request, f *stream.Flux[item.Item]) {
	ctx := r.Context()
	sub := f.Subscribe(ctx)
	defer sub.Cancel()

	first, ok := sub.Next(ctx)
	if !ok {
		if err := sub.Err(); err != nil {
			s.writeRemoteError(w, r, err)
			return
		}
	}

	nd := strings.Contains(r.Header.Get("Accept"), ndjson)
	if nd {
		w.Header().Set("Content-Type", ndjson)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	if !nd {
		_, _ = w.Write([]byte("["))
	}
	n := 0
	for it, more := first, ok; more; it, more = sub.Next(ctx) {
		if !nd && n > 0 {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(it); err != nil {
			s.log.Warn("client went away", "err", err, "path", r.URL.Path)
			return
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := sub.Err(); err != nil {
		s.log.Error("item stream failed after partial response",
			"err", err, "path", r.URL.Path, "delivered", n)
		return
	}
	if !nd {
		_, _ = w.Write([]byte("]"))
	}
}

// writeRemoteError maps remote failures onto gateway responses. Upstream
// statuses pass through, transport failures become 502.
func (s *Server) writeRemoteError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	var se *remote.RemoteStatusError
	var te *remote.TransportError
	switch {
	case errors.As(err, &se):
		s.log.Error("upstream rejected request", "status", se.Status, "body", se.Body, "path", r.URL.Path)
		msg := se.Body
		if msg == "" {
			msg = http.StatusText(se.Status)
		}
		s.writeJSON(w, se.Status, ErrorResponse{Error: msg, Status: se.Status})
	case errors.As(err, &te):
		s.log.Error("upstream unreachable", "err", err, "path", r.URL.Path)
		s.writeError(w, http.StatusBadGateway, te.Error())
	default:
		s.log.Error("request failed", "err", err, "path", r.URL.Path)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
