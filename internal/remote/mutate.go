package remote

import (
	"context"
	"io"
	"net/http"

	"fluxgate/internal/item"
	"fluxgate/internal/stream"
)

// Create posts it and resolves to the representation the upstream echoes,
// including the identifier it assigned.
func (c *Client) Create(it item.Item) *stream.Mono[item.Item] {
	call := Call{Method: http.MethodPost, Path: itemsPath, Body: it, ContentType: "application/json"}
	return c.retrieveSingle(call).Log("Post")
}

// Update replaces the item identified by id with it.
func (c *Client) Update(id string, it item.Item) *stream.Mono[item.Item] {
	call := Call{Method: http.MethodPut, Path: itemPath(id), Body: it, ContentType: "application/json"}
	return c.retrieveSingle(call).Log("Put")
}

// Delete removes the item identified by id. It completes without a value.
func (c *Client) Delete(id string) *stream.Mono[struct{}] {
	call := Call{Method: http.MethodDelete, Path: itemPath(id)}
	return stream.NewMono(func(ctx context.Context) (struct{}, bool, error) {
		resp, err := c.retrieve(ctx, call)
		if err != nil {
			return struct{}{}, false, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return struct{}{}, false, nil
	}).Log("Delete")
}
