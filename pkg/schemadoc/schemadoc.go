// Package schemadoc contains helpers for working with decoded JSON schema
// documents.
//
// Documents are the generic tree produced by encoding/json: map[string]any
// for objects, []any for arrays, json.Number for numbers, and string, bool
// or nil for the remaining scalars.
package schemadoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Object is a decoded JSON object.
type Object = map[string]any

// Decode parses the given bytes into a document. Numbers are kept as
// json.Number so that they round trip without loss of precision.
func Decode(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level JSON value")
	}
	return doc, nil
}

// MustDecode parses the given string or panics. Meant for tests and
// constants.
func MustDecode(data string) any {
	doc, err := Decode([]byte(data))
	if err != nil {
		panic(err)
	}
	return doc
}

// Encode serializes the document.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DeepCopy returns a copy of the document that shares no mutable state with
// the original.
func DeepCopy(doc any) any {
	switch v := doc.(type) {
	case map[string]any:
		copied := make(map[string]any, len(v))
		for key, value := range v {
			copied[key] = DeepCopy(value)
		}
		return copied

	case []any:
		copied := make([]any, len(v))
		for i, value := range v {
			copied[i] = DeepCopy(value)
		}
		return copied

	default:
		return v
	}
}

// AsObject returns the value as an object, if it is one.
func AsObject(doc any) (Object, bool) {
	obj, ok := doc.(map[string]any)
	return obj, ok
}
