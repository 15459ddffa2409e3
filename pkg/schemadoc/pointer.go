package schemadoc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonpointer"
)

// ResolvePointer applies an RFC 6901 JSON pointer, as found in the fragment
// of a URI, to the document. An empty pointer returns the document itself.
func ResolvePointer(doc any, fragment string) (any, error) {
	if fragment == "" {
		return doc, nil
	}

	unescaped, err := url.PathUnescape(fragment)
	if err != nil {
		return nil, fmt.Errorf("invalid pointer `%s`: %w", fragment, err)
	}

	pointer, err := gojsonpointer.NewJsonPointer(unescaped)
	if err != nil {
		return nil, fmt.Errorf("invalid pointer `%s`: %w", fragment, err)
	}

	if err := checkArrayIndexes(doc, unescaped); err != nil {
		return nil, fmt.Errorf("pointer `%s`: %w", fragment, err)
	}

	found, _, err := pointer.Get(doc)
	if err != nil {
		return nil, fmt.Errorf("pointer `%s`: %w", fragment, err)
	}
	return found, nil
}

// checkArrayIndexes rejects array indexes with leading zeros, which
// gojsonpointer accepts but RFC 6901 forbids. Keys such as "01" on objects
// stay valid.
func checkArrayIndexes(doc any, unescaped string) error {
	tokens := strings.Split(unescaped[1:], "/")
	for i, token := range tokens {
		if !hasLeadingZero(token) {
			continue
		}

		parentPointer, err := gojsonpointer.NewJsonPointer(prefixPointer(tokens[:i]))
		if err != nil {
			return err
		}
		parent, _, err := parentPointer.Get(doc)
		if err != nil {
			// Reported by the full lookup.
			return nil
		}
		if _, ok := parent.([]any); ok {
			return fmt.Errorf("invalid array index `%s`", token)
		}
	}
	return nil
}

func prefixPointer(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return "/" + strings.Join(tokens, "/")
}

func hasLeadingZero(token string) bool {
	if len(token) < 2 || token[0] != '0' {
		return false
	}
	return strings.Trim(token, "0123456789") == ""
}
