// Package serializer provides serialization interfaces and implementations for converting
// collection snapshots to and from byte slices. Snapshots travel between shards, backends
// and transports through one of the registered serializers.
//
// The package includes a JSON serializer built on goccy/go-json, a msgpack serializer
// and a CBOR serializer built on ugorji/go/codec.
package serializer

import (
	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"
)

// DefaultJSONSerializer leverages `go-json` to serialize snapshots.
type DefaultJSONSerializer struct{}

// Marshal serializes the given value into a byte slice.
func (*DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal json")
	}

	return data, nil
}

// Unmarshal deserializes the given byte slice into the given value.
func (*DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err != nil {
		return ewrap.Wrap(err, "failed to unmarshal json")
	}

	return nil
}
