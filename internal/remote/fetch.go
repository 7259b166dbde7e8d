package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"fluxgate/internal/item"
	"fluxgate/internal/scheduler"
	"fluxgate/internal/stream"
)

// Strategy selects how a response is consumed.
type Strategy int

const (
	// Direct decodes the body straight into items; non-2xx fails first.
	Direct Strategy = iota
	// Inspected looks at the whole response and branches on its status.
	Inspected
)

func (s Strategy) String() string {
	if s == Inspected {
		return "exchange"
	}
	return "retrieve"
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "retrieve", "direct":
		return Direct, nil
	case "exchange", "inspected":
		return Inspected, nil
	}
	return Direct, fmt.Errorf("remote: unknown strategy %q", s)
}

func itemPath(id string) string {
	return itemsPath + "/" + url.PathEscape(id)
}

// FetchAll lists the collection. Items arrive in server order.
func (c *Client) FetchAll(s Strategy) *stream.Flux[item.Item] {
	call := Call{Method: http.MethodGet, Path: itemsPath}
	if s == Inspected {
		return c.exchangeMany(call).Log("Item in client project exchange")
	}
	return c.retrieveMany(call).Log("Item in client project")
}

// FetchError targets the deliberately failing upstream endpoint.
func (c *Client) FetchError(s Strategy) *stream.Flux[item.Item] {
	call := Call{Method: http.MethodGet, Path: errorPath}
	if s == Inspected {
		return c.exchangeMany(call).Log("Error exchange")
	}
	return c.retrieveMany(call).Log("Error retrieve")
}

// FetchOne reads a single item. A missing item fails with a
// RemoteStatusError (404) or completes empty, depending on the upstream.
func (c *Client) FetchOne(id string, s Strategy) *stream.Mono[item.Item] {
	if s == Inspected {
		return c.exchangeOne(id).Log("Mono item exchange")
	}
	return c.retrieveOne(id).Log("Mono item")
}

// FetchOneOn reads a single item with the request issued from pool
// (emission) and tap run on pool (processing). A nil tap logs the item.
func (c *Client) FetchOneOn(id string, pool *scheduler.Pool, tap func(ctx context.Context, it item.Item)) *stream.Mono[item.Item] {
	if tap == nil {
		tap = func(ctx context.Context, it item.Item) {
			c.log.Info("Response", append(scheduler.Attrs(ctx), "item", it.String())...)
		}
	}
	return c.retrieveOne(id).
		SubscribeOn(pool).
		PublishOn(pool).
		DoOnNext(tap).
		Log("Mono item")
}

func (c *Client) retrieveMany(call Call) *stream.Flux[item.Item] {
	return stream.New(func(ctx context.Context, emit stream.Emit[item.Item]) error {
		resp, err := c.retrieve(ctx, call)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return decodeItems(ctx, resp.Body, emit)
	})
}

func (c *Client) exchangeMany(call Call) *stream.Flux[item.Item] {
	return stream.FlatMapMany(c.exchange(call), func(_ context.Context, env *Envelope) *stream.Flux[item.Item] {
		if env.Outcome() != Pass {
			err := env.StatusError()
			c.log.Error("error message in exchange", "status", env.Status, "outcome", env.Outcome().String(), "err", err)
			return stream.Error[item.Item](err)
		}
		return env.ItemFlux()
	})
}

func (c *Client) retrieveOne(id string) *stream.Mono[item.Item] {
	call := Call{Method: http.MethodGet, Path: itemPath(id)}
	return c.retrieveSingle(call)
}

func (c *Client) exchangeOne(id string) *stream.Mono[item.Item] {
	call := Call{Method: http.MethodGet, Path: itemPath(id)}
	return stream.FlatMap(c.exchange(call), func(_ context.Context, env *Envelope) *stream.Mono[item.Item] {
		if env.Outcome() != Pass {
			return stream.MonoError[item.Item](env.StatusError())
		}
		return env.ItemMono()
	})
}

// retrieveSingle runs call with the Direct strategy and decodes at most one
// item from the body.
func (c *Client) retrieveSingle(call Call) *stream.Mono[item.Item] {
	return stream.NewMono(func(ctx context.Context) (item.Item, bool, error) {
		resp, err := c.retrieve(ctx, call)
		if err != nil {
			return item.Item{}, false, err
		}
		defer resp.Body.Close()
		return decodeOne(resp.Body)
	})
}
