// Package remote is the non-blocking client for the upstream item
// collection. Every operation returns a cold stream.Flux or stream.Mono; the
// HTTP exchange happens only when the result is subscribed, and it is bound
// to the subscription's context.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fluxgate/internal/logging"
	"fluxgate/internal/stream"
	"fluxgate/internal/telemetry"

	"github.com/pkg/errors"
)

const (
	itemsPath = "/v2/items"
	errorPath = "/v2/error"
)

type Config struct {
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"` // until response headers
	DefaultItemID string        `koanf:"default_item_id"`
	MaxErrorBody  int64         `koanf:"max_error_body"`
}

// Call describes one upstream request.
type Call struct {
	Method      string
	Path        string
	Body        any
	ContentType string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxErrBody int64
	log        *slog.Logger
}

// NewClient builds a client. The timeout bounds connecting and waiting for
// response headers only; bodies stream for as long as the subscriber reads.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxErr := cfg.MaxErrorBody
	if maxErr <= 0 {
		maxErr = 64 << 10
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Transport: tr},
		maxErrBody: maxErr,
		log:        logging.Named("remote"),
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do issues call and returns the raw response, whatever its status.
func (c *Client) do(ctx context.Context, call Call) (*http.Response, error) {
	var body io.Reader
	if call.Body != nil {
		raw, err := json.Marshal(call.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "remote: encode %s %s body", call.Method, call.Path)
		}
		body = bytes.NewReader(raw)
	}

	target := c.url(call.Path)
	req, err := http.NewRequestWithContext(ctx, call.Method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "remote: build request")
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	if body != nil {
		ct := call.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.RemoteLatency.WithLabelValues(call.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.RemoteRequests.WithLabelValues(call.Method, "transport_error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Method: call.Method, URL: target, Cause: err}
	}
	telemetry.RemoteRequests.WithLabelValues(call.Method, Classify(resp.StatusCode).String()).Inc()
	c.log.Debug("upstream response", "method", call.Method, "url", target, "status", resp.StatusCode)
	return resp, nil
}

// retrieve is the Direct strategy: the response is classified on arrival and
// anything but Pass becomes a RemoteStatusError before the body is decoded.
func (c *Client) retrieve(ctx context.Context, call Call) (*http.Response, error) {
	resp, err := c.do(ctx, call)
	if err != nil {
		return nil, err
	}
	if Classify(resp.StatusCode) != Pass {
		defer resp.Body.Close()
		serr := c.statusError(call, resp.StatusCode, resp.Body)
		c.log.Error("upstream error response", "status", serr.Status, "url", serr.URL, "body", serr.Body)
		return nil, serr
	}
	return resp, nil
}

// exchange is the Inspected strategy: the caller gets the whole response and
// decides how to read it. The envelope is closed once downstream is done
// with it.
func (c *Client) exchange(call Call) *stream.Mono[*Envelope] {
	return stream.MonoSource(func(ctx context.Context, emit stream.Emit[*Envelope]) error {
		resp, err := c.do(ctx, call)
		if err != nil {
			return err
		}
		env := newEnvelope(c, call, resp)
		defer env.Close()
		return emit(ctx, env)
	})
}

func (c *Client) statusError(call Call, status int, body io.Reader) *RemoteStatusError {
	raw, _ := io.ReadAll(io.LimitReader(body, c.maxErrBody))
	return &RemoteStatusError{
		Method: call.Method,
		URL:    c.url(call.Path),
		Status: status,
		Body:   strings.TrimSpace(string(raw)),
	}
}
