package indicatorclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Payload is a JSON response body passed through verbatim.
type Payload struct {
	raw json.RawMessage
}

func newPayload(body []byte) (Payload, error) {
	if !gjson.ValidBytes(body) {
		return Payload{}, errors.New("decode response: body is not valid JSON")
	}
	raw := make([]byte, len(body))
	copy(raw, body)
	return Payload{raw: raw}, nil
}

// Raw returns the undecoded response body.
func (p Payload) Raw() json.RawMessage { return p.raw }

// IsZero reports whether the payload carries no body.
func (p Payload) IsZero() bool { return len(p.raw) == 0 }

// Get reads a field using gjson path syntax, e.g. "results.sh600519.data_count".
func (p Payload) Get(path string) gjson.Result { return gjson.GetBytes(p.raw, path) }

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if p.IsZero() {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal(p.raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Map decodes a JSON object payload. Non-object payloads yield nil.
func (p Payload) Map() map[string]any {
	var out map[string]any
	if err := json.Unmarshal(p.raw, &out); err != nil {
		return nil
	}
	return out
}

// MarshalJSON emits the original body.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p Payload) String() string { return string(p.raw) }
