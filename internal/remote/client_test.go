package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fluxgate/internal/item"
	"fluxgate/internal/scheduler"
	"fluxgate/internal/upstream"
)

func newTestClient(t *testing.T, seed ...item.Item) (*Client, *upstream.Server) {
	t.Helper()
	up := upstream.New(seed...)
	srv := httptest.NewServer(up.Router())
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}), up
}

func abc() []item.Item {
	return []item.Item{
		{ID: "A", Name: "Apple"},
		{ID: "B", Name: "Banana"},
		{ID: "C", Name: "Cherry"},
	}
}

func ids(items []item.Item) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return strings.Join(out, ",")
}

func TestClassify(t *testing.T) {
	cases := map[int]Outcome{
		200: Pass, 201: Pass, 204: Pass, 302: Pass,
		400: ClientError, 404: ClientError, 499: ClientError,
		500: ServerError, 503: ServerError, 599: ServerError,
	}
	for status, want := range cases {
		if got := Classify(status); got != want {
			t.Fatalf("Classify(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestFetchAll_SameOrderForBothStrategies(t *testing.T) {
	c, _ := newTestClient(t, abc()...)

	direct, err := c.FetchAll(Direct).Collect(context.Background())
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	inspected, err := c.FetchAll(Inspected).Collect(context.Background())
	if err != nil {
		t.Fatalf("inspected: %v", err)
	}
	if ids(direct) != "A,B,C" || ids(inspected) != "A,B,C" {
		t.Fatalf("want A,B,C for both, got %q and %q", ids(direct), ids(inspected))
	}
}

func TestFetchAll_EmptyCollection(t *testing.T) {
	c, _ := newTestClient(t)
	got, err := c.FetchAll(Direct).Collect(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestFetchError_ServerErrorCarriesBody(t *testing.T) {
	c, up := newTestClient(t, abc()...)
	up.ErrorBody = "db down"

	for _, s := range []Strategy{Direct, Inspected} {
		got, err := c.FetchError(s).Collect(context.Background())
		if len(got) != 0 {
			t.Fatalf("%v: want zero items, got %v", s, got)
		}
		var se *RemoteStatusError
		if !errors.As(err, &se) {
			t.Fatalf("%v: want RemoteStatusError, got %v", s, err)
		}
		if se.Status != 500 || se.Body != "db down" || se.Outcome() != ServerError {
			t.Fatalf("%v: unexpected error %+v", s, se)
		}
	}
}

func TestFetchError_ClientErrorIsClassifiedSeparately(t *testing.T) {
	c, up := newTestClient(t)
	up.ErrorStatus = http.StatusTeapot
	up.ErrorBody = "no coffee"

	_, err := c.FetchError(Inspected).Collect(context.Background())
	var se *RemoteStatusError
	if !errors.As(err, &se) || se.Outcome() != ClientError || StatusOf(err) != http.StatusTeapot {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchOne_MissingIsNeverAPlaceholder(t *testing.T) {
	c, _ := newTestClient(t, abc()...)
	for _, s := range []Strategy{Direct, Inspected} {
		it, ok, err := c.FetchOne("nope", s).Await(context.Background())
		if ok || it != (item.Item{}) {
			t.Fatalf("%v: got placeholder %+v", s, it)
		}
		if StatusOf(err) != http.StatusNotFound {
			t.Fatalf("%v: want 404, got %v", s, err)
		}
	}
}

func TestFetchOne_EmptyBodyCompletesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})

	for _, s := range []Strategy{Direct, Inspected} {
		_, ok, err := c.FetchOne("ABC", s).Await(context.Background())
		if ok || err != nil {
			t.Fatalf("%v: want empty completion, got ok=%v err=%v", s, ok, err)
		}
	}
}

func TestCreateThenFetchOne(t *testing.T) {
	c, _ := newTestClient(t)

	created, ok, err := c.Create(item.Item{Name: "Widget"}).Await(context.Background())
	if err != nil || !ok {
		t.Fatalf("create: %v %v", ok, err)
	}
	if created.ID == "" || created.Name != "Widget" {
		t.Fatalf("unexpected echo: %+v", created)
	}

	for _, s := range []Strategy{Direct, Inspected} {
		got, ok, err := c.FetchOne(created.ID, s).Await(context.Background())
		if err != nil || !ok || got != created {
			t.Fatalf("%v: got %+v %v %v, want %+v", s, got, ok, err, created)
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	c, up := newTestClient(t, abc()...)

	updated, ok, err := c.Update("B", item.Item{Name: "Blueberry", Price: 2.5}).Await(context.Background())
	if err != nil || !ok || updated.ID != "B" || updated.Name != "Blueberry" {
		t.Fatalf("update: %+v %v %v", updated, ok, err)
	}

	_, ok, err = c.Delete("B").Await(context.Background())
	if err != nil || ok {
		t.Fatalf("delete must complete empty, got ok=%v err=%v", ok, err)
	}
	if ids(up.Items()) != "A,C" {
		t.Fatalf("B not deleted: %q", ids(up.Items()))
	}

	if _, _, err := c.Delete("B").Await(context.Background()); StatusOf(err) != http.StatusNotFound {
		t.Fatalf("second delete: want 404, got %v", err)
	}
	if _, _, err := c.Update("B", item.Item{}).Await(context.Background()); StatusOf(err) != http.StatusNotFound {
		t.Fatalf("update missing: want 404, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: base, Timeout: time.Second})
	_, err := c.FetchAll(Direct).Collect(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want TransportError, got %T %v", err, err)
	}
	if te.Method != http.MethodGet || te.Cause == nil {
		t.Fatalf("unexpected transport error: %+v", te)
	}
}

func TestFetchAll_FailureMidStreamKeepsDeliveredItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"A"},{"id":"B"},{"id":`))
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})

	got, err := c.FetchAll(Direct).Collect(context.Background())
	if err == nil {
		t.Fatal("want a decode error")
	}
	if ids(got) != "A,B" {
		t.Fatalf("want A,B before the error, got %q", ids(got))
	}
}

func TestFetchAll_NDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte("{\"id\":\"A\"}\n{\"id\":\"B\"}\n"))
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})

	got, err := c.FetchAll(Inspected).Collect(context.Background())
	if err != nil || ids(got) != "A,B" {
		t.Fatalf("got %q %v", ids(got), err)
	}
}

func TestFetchAll_CancelReleasesRequest(t *testing.T) {
	released := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fl := w.(http.Flusher)
		_, _ = w.Write([]byte("["))
		for i := 0; ; i++ {
			if i > 0 {
				_, _ = w.Write([]byte(","))
			}
			_, _ = fmt.Fprintf(w, `{"id":"%d"}`, i)
			fl.Flush()
			select {
			case <-r.Context().Done():
				close(released)
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})

	sub := c.FetchAll(Direct).Subscribe(context.Background())
	first, ok := sub.Next(context.Background())
	if !ok || first.ID != "0" {
		t.Fatalf("want first item 0, got %+v %v", first, ok)
	}
	sub.Cancel()

	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream request was not released after cancel")
	}
}

func TestFetchOneOn_TapRunsInProcessingContext(t *testing.T) {
	c, _ := newTestClient(t, abc()...)
	pool := scheduler.NewPool(scheduler.Config{Name: "MyThreadGroup", Min: 5, Max: 10})
	defer pool.Close()

	var seen scheduler.ExecContext
	got, ok, err := c.FetchOneOn("A", pool, func(ctx context.Context, it item.Item) {
		seen, _ = scheduler.FromContext(ctx)
	}).Await(context.Background())
	if err != nil || !ok || got.ID != "A" {
		t.Fatalf("got %+v %v %v", got, ok, err)
	}
	if seen.Pool != "MyThreadGroup" || seen.Role != scheduler.RoleProcessing {
		t.Fatalf("tap observed %+v", seen)
	}

	plain, _, _ := c.FetchOne("A", Direct).Await(context.Background())
	if plain != got {
		t.Fatalf("relocation changed the value: %+v vs %+v", plain, got)
	}
}

func TestFetchOneOn_ConcurrentCallsOnSmallPool(t *testing.T) {
	c, _ := newTestClient(t, abc()...)
	pool := scheduler.NewPool(scheduler.Config{Name: "MyThreadGroup", Min: 1, Max: 2})
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const calls = 12
	errs := make(chan error, calls+1)
	for i := 0; i < calls; i++ {
		id := abc()[i%3].ID
		go func() {
			got, ok, err := c.FetchOneOn(id, pool, func(context.Context, item.Item) {}).Await(ctx)
			if err == nil && (!ok || got.ID != id) {
				err = fmt.Errorf("want %s, got %+v (ok=%v)", id, got, ok)
			}
			errs <- err
		}()
	}
	go func() {
		got, err := c.FetchAll(Direct).SubscribeOn(pool).PublishOn(pool, 1).Collect(ctx)
		if err == nil && ids(got) != "A,B,C" {
			err = fmt.Errorf("relocated list returned %q", ids(got))
		}
		errs <- err
	}()

	for i := 0; i < calls+1; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("relocated call did not complete: %v", err)
		}
	}
}

func TestEnvelope_BodyIsConsumedOnce(t *testing.T) {
	c, _ := newTestClient(t, abc()...)
	resp, err := c.do(context.Background(), Call{Method: http.MethodGet, Path: itemsPath})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	env := newEnvelope(c, Call{Method: http.MethodGet, Path: itemsPath}, resp)
	defer env.Close()

	if env.Outcome() != Pass || env.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected envelope: %d %v", env.Status, env.Header)
	}
	if _, err := env.BodyString(); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := env.BodyString(); !errors.Is(err, ErrBodyConsumed) {
		t.Fatalf("want ErrBodyConsumed, got %v", err)
	}
	if _, err := env.ItemFlux().Collect(context.Background()); !errors.Is(err, ErrBodyConsumed) {
		t.Fatalf("want ErrBodyConsumed from ItemFlux, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("exchange"); err != nil || s != Inspected {
		t.Fatalf("exchange: %v %v", s, err)
	}
	if s, err := ParseStrategy(""); err != nil || s != Direct {
		t.Fatalf("default: %v %v", s, err)
	}
	if _, err := ParseStrategy("bogus"); err == nil {
		t.Fatal("want error for unknown strategy")
	}
}
