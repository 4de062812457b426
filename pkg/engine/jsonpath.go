package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// selectPath resolves a reference path against a decoded JSON document. Only
// the subset the workflow needs is supported: "$" for the whole document and
// "$.a.b" for nested object fields.
func selectPath(doc interface{}, path string) (interface{}, error) {
	if !validPath(path) {
		return nil, NewValidationError(fmt.Sprintf("invalid reference path %q", path), nil).
			WithCode(ErrCodeInvalidPath)
	}
	if path == "$" {
		return doc, nil
	}

	current := doc
	for _, field := range strings.Split(strings.TrimPrefix(path, "$."), ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, NewValidationError(
				fmt.Sprintf("path %q: cannot select field %q from a non-object value", path, field), nil).
				WithCode(ErrCodeInvalidPath)
		}
		next, ok := obj[field]
		if !ok {
			return nil, NewValidationError(fmt.Sprintf("path %q: field %q not found", path, field), nil).
				WithCode(ErrCodeInvalidPath)
		}
		current = next
	}
	return current, nil
}

// validPath reports whether path is "$" or "$." followed by non-empty field names.
func validPath(path string) bool {
	if path == "$" {
		return true
	}
	if !strings.HasPrefix(path, "$.") {
		return false
	}
	for _, field := range strings.Split(path[2:], ".") {
		if field == "" || strings.ContainsAny(field, "[]*") {
			return false
		}
	}
	return true
}

// decodeDocument decodes raw JSON keeping numbers as json.Number so integers
// round-trip without float conversion.
func decodeDocument(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}
	return doc, nil
}
