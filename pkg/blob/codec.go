// Package blob converts stored value bytes to and from JSON.
package blob

import (
	"bytes"
	"encoding/json"

	"github.com/beam-cloud/airkv/pkg/types"
)

// Decode returns the JSON value held in raw, or nil when no JSON can be recovered.
// Emulator blobs may carry framing bytes before the payload, so parsing falls back
// to the first '{' or '['. Anything but whitespace after the payload makes the blob
// undecodable. Decode never fails.
func Decode(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return clone(trimmed)
	}

	start := bytes.IndexAny(raw, "{[")
	if start < 0 {
		return nil
	}

	payload := bytes.TrimSpace(raw[start:])
	if !json.Valid(payload) {
		return nil
	}
	return clone(payload)
}

// Encode validates text as JSON and returns the bytes to write.
func Encode(text string) ([]byte, error) {
	data := []byte(text)
	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		return nil, types.NewInvalidJSON(err)
	}
	return data, nil
}

func clone(b []byte) json.RawMessage {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
