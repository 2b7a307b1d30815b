package imageapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// shape lists the keys a JSON object must carry before it is decoded.
// items applies to every element of the "data" array of a page envelope.
type shape struct {
	fields []string
	items  []string
}

func pageShape(items []string) shape { return shape{fields: pageFields, items: items} }

// decodeBody validates body against s and unmarshals it into out.
// A nil out only checks that body is valid JSON.
func decodeBody(body []byte, out any, s shape) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty response body")
	}
	if !json.Valid(trimmed) {
		return errors.New("response body is not valid JSON")
	}
	if out == nil {
		return nil
	}
	if len(s.fields) > 0 {
		obj, err := requireFields(trimmed, s.fields)
		if err != nil {
			return err
		}
		if len(s.items) > 0 {
			if err := requireItemFields(obj["data"], s.items); err != nil {
				return err
			}
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func requireFields(raw []byte, fields []string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("expected JSON object: %w", err)
	}
	if obj == nil {
		return nil, errors.New("expected JSON object, got null")
	}
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || isNull(v) {
			return nil, fmt.Errorf("missing required field %q", f)
		}
	}
	return obj, nil
}

func requireItemFields(raw json.RawMessage, fields []string) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("field \"data\" is not an array: %w", err)
	}
	for i, item := range items {
		if _, err := requireFields(item, fields); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// errorDetail extracts the "detail" message from an error body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 || isNull(payload.Detail) {
		return unknownErrorMessage
	}
	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		if msg == "" {
			return unknownErrorMessage
		}
		return msg
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return unknownErrorMessage
	}
	return compact.String()
}
