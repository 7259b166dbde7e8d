package remote

import (
	"context"
	"io"
	"net/http"
	"sync"

	"fluxgate/internal/item"
	"fluxgate/internal/stream"
)

// Envelope is a full upstream response: status, headers, and a body that can
// be read exactly once, as text or as items.
type Envelope struct {
	Status int
	Header http.Header

	client *Client
	call   Call

	mu       sync.Mutex
	body     io.ReadCloser
	consumed bool
}

func newEnvelope(c *Client, call Call, resp *http.Response) *Envelope {
	return &Envelope{
		Status: resp.StatusCode,
		Header: resp.Header,
		client: c,
		call:   call,
		body:   resp.Body,
	}
}

func (e *Envelope) Outcome() Outcome { return Classify(e.Status) }

// take hands out the body once.
func (e *Envelope) take() (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consumed {
		return nil, ErrBodyConsumed
	}
	e.consumed = true
	return e.body, nil
}

// BodyString reads the body as text.
func (e *Envelope) BodyString() (string, error) {
	body, err := e.take()
	if err != nil {
		return "", err
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, e.client.maxErrBody))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// StatusError reads the body as the error detail of this response.
func (e *Envelope) StatusError() error {
	body, err := e.take()
	if err != nil {
		return err
	}
	defer body.Close()
	return e.client.statusError(e.call, e.Status, body)
}

// ItemFlux decodes the body as a sequence of items, one at a time as the
// subscriber asks for them.
func (e *Envelope) ItemFlux() *stream.Flux[item.Item] {
	return stream.New(func(ctx context.Context, emit stream.Emit[item.Item]) error {
		body, err := e.take()
		if err != nil {
			return err
		}
		defer body.Close()
		return decodeItems(ctx, body, emit)
	})
}

// ItemMono decodes the body as at most one item. An empty body completes
// without a value.
func (e *Envelope) ItemMono() *stream.Mono[item.Item] {
	return stream.NewMono(func(context.Context) (item.Item, bool, error) {
		body, err := e.take()
		if err != nil {
			return item.Item{}, false, err
		}
		defer body.Close()
		return decodeOne(body)
	})
}

// Close releases the body if nobody consumed it.
func (e *Envelope) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consumed {
		return nil
	}
	e.consumed = true
	return e.body.Close()
}
