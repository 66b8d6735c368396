package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"sort"
	"strconv"
)

func encodeJSON(payload any) ([]byte, string, error) {
	if payload == nil {
		return nil, "", nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, "application/json", nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}

// encodeForm flattens the payload's top-level JSON fields into multipart form
// values. Null fields are omitted.
func encodeForm(payload any) ([]byte, string, error) {
	raw, _, err := encodeJSON(payload)
	if err != nil {
		return nil, "", err
	}
	fields := map[string]any{}
	if len(raw) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&fields); err != nil {
			return nil, "", fmt.Errorf("form payload must be an object: %w", err)
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, key := range keys {
		value, ok := formValue(fields[key])
		if !ok {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func formValue(v any) (string, bool) {
	switch typed := v.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		nested, err := json.Marshal(typed)
		if err != nil {
			return "", false
		}
		return string(nested), true
	}
}
