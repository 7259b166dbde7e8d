package upstream

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fluxgate/internal/item"
)

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestListKeepsInsertionOrder(t *testing.T) {
	s := New(item.Item{ID: "B"}, item.Item{ID: "A"}, item.Item{ID: "C"})
	rec := call(t, s.Router(), http.MethodGet, "/v2/items", "")

	var got []item.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	if len(got) != 3 || got[0].ID != "B" || got[1].ID != "A" || got[2].ID != "C" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestCreateAssignsID(t *testing.T) {
	s := New()
	rec := call(t, s.Router(), http.MethodPost, "/v2/items", `{"name":"Widget"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d", rec.Code)
	}
	var it item.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil || it.ID == "" {
		t.Fatalf("created %+v %v", it, err)
	}
	if len(s.Items()) != 1 {
		t.Fatal("item not stored")
	}
}

func TestMissingItemIs404(t *testing.T) {
	s := New()
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		if rec := call(t, s.Router(), m, "/v2/items/nope", `{}`); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", m, rec.Code)
		}
	}
}

func TestUpdateKeepsPathID(t *testing.T) {
	s := New(item.Item{ID: "ABC", Name: "old"})
	rec := call(t, s.Router(), http.MethodPut, "/v2/items/ABC", `{"id":"other","name":"new"}`)
	var it item.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil || it.ID != "ABC" || it.Name != "new" {
		t.Fatalf("updated %+v %v", it, err)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("update must not insert, have %d items", len(s.Items()))
	}
}

func TestErrorEndpoint(t *testing.T) {
	s := New()
	s.ErrorStatus = http.StatusServiceUnavailable
	rec := call(t, s.Router(), http.MethodGet, "/v2/error", "")
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "RuntimeException Occurred." {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
