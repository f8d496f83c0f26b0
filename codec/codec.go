// Package codec decodes raw message payloads into values for rendering and
// archiving.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidUTF8 is wrapped by the *DecodeError for a raw payload that is
// not valid UTF-8.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// Kind selects how payload bytes are interpreted.
type Kind string

const (
	// Raw treats the payload as UTF-8 text. Invalid UTF-8 is a decode
	// error; use msgpack or json for binary payloads.
	Raw Kind = "raw"
	// JSON decodes the payload as a JSON document.
	JSON Kind = "json"
	// Msgpack decodes the payload as a msgpack value.
	Msgpack Kind = "msgpack"
)

// Parse parses a codec name. An empty string yields Raw.
func Parse(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case "", Raw:
		return Raw, nil
	case JSON:
		return JSON, nil
	case Msgpack:
		return Msgpack, nil
	default:
		return "", fmt.Errorf("invalid codec %q (must be raw, json, or msgpack)", s)
	}
}

// DecodeError is returned when a payload does not match its codec.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode interprets payload according to kind.
// Raw yields a string; JSON and Msgpack yield generic values
// (map[string]any, []any, string, numbers, bool, nil).
func Decode(kind Kind, payload []byte) (any, error) {
	switch kind {
	case Raw, "":
		if !utf8.Valid(payload) {
			return nil, &DecodeError{Kind: Raw, Err: ErrInvalidUTF8}
		}
		return string(payload), nil
	case JSON:
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
		return v, nil
	case Msgpack:
		var v any
		if err := msgpack.Unmarshal(payload, &v); err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
		return v, nil
	default:
		return nil, &DecodeError{Kind: kind, Err: fmt.Errorf("unknown codec")}
	}
}

// Encode is the inverse of Decode for producers.
func Encode(kind Kind, v any) ([]byte, error) {
	switch kind {
	case Raw, "":
		switch t := v.(type) {
		case string:
			return []byte(t), nil
		case []byte:
			return t, nil
		default:
			return []byte(fmt.Sprint(v)), nil
		}
	case JSON:
		return json.Marshal(v)
	case Msgpack:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown codec %q", kind)
	}
}

// Normalize converts decoder output into values encoding/json accepts:
// map[any]any (produced by msgpack and yaml) becomes map[string]any,
// recursively.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
