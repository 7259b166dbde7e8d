package kafka

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Deserializer turns raw key or value bytes into a Go value. A nil payload
// always decodes to nil.
type Deserializer func(topic string, data []byte) (any, error)

var deserializers = map[string]Deserializer{
	"integer": IntegerDeserializer,
	"string":  StringDeserializer,
	"bytes":   BytesDeserializer,
	"json":    JSONDeserializer,
}

func DeserializerFor(name string) (Deserializer, error) {
	if d, ok := deserializers[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("kafka: unknown deserializer %q", name)
}

// IntegerDeserializer reads a 4-byte big-endian int32, the wire format of
// the standard Kafka integer serializer.
func IntegerDeserializer(_ string, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	if len(data) != 4 {
		return nil, fmt.Errorf("kafka: integer payload has %d bytes, want 4", len(data))
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

// EncodeInteger is the inverse of IntegerDeserializer.
func EncodeInteger(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func StringDeserializer(_ string, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}

func BytesDeserializer(_ string, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return data, nil
}

func JSONDeserializer(_ string, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("kafka: json payload: %w", err)
	}
	return v, nil
}
