package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"fluxgate/internal/item"
	"fluxgate/internal/stream"

	"github.com/pkg/errors"
)

// decodeItems streams items out of body without reading it whole. A body
// starting with '[' is a JSON array; anything else is read as a sequence of
// JSON values (NDJSON, or a single object).
func decodeItems(ctx context.Context, body io.Reader, emit stream.Emit[item.Item]) error {
	br := bufio.NewReader(body)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "remote: read items")
	}

	dec := json.NewDecoder(br)
	if first != '[' {
		for {
			var it item.Item
			if err := dec.Decode(&it); err == io.EOF {
				return nil
			} else if err != nil {
				return errors.Wrap(err, "remote: decode item")
			}
			if err := emit(ctx, it); err != nil {
				return err
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "remote: decode items")
	}
	for dec.More() {
		var it item.Item
		if err := dec.Decode(&it); err != nil {
			return errors.Wrap(err, "remote: decode item")
		}
		if err := emit(ctx, it); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "remote: decode items")
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// decodeOne reads a single item. An empty or null body is no item, never a
// zero-valued placeholder.
func decodeOne(body io.Reader) (item.Item, bool, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return item.Item{}, false, errors.Wrap(err, "remote: read item")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return item.Item{}, false, nil
	}
	var it item.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return item.Item{}, false, errors.Wrap(err, "remote: decode item")
	}
	return it, true, nil
}
