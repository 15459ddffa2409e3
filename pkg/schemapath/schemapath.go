// Package schemapath defines the logical identifiers used to key schemas in
// the registry.
//
// A schema path is a slash-separated relative path such as
// `biology/animal_record_schema.json`. It never has a leading slash, never
// contains `.` or `..` segments, and never contains empty segments.
package schemapath

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/authzed/jsonschemas/pkg/schemaerrors"
)

// SchemaExtension is the extension recognized as a schema document,
// compared case-insensitively.
const SchemaExtension = ".json"

// Validate returns an ErrInvalidPath if the given string is not a normalized
// schema path.
func Validate(p string) error {
	switch {
	case p == "":
		return schemaerrors.NewInvalidPathErr(p, "path is empty")
	case strings.HasPrefix(p, "/"):
		return schemaerrors.NewInvalidPathErr(p, "path must be relative")
	case strings.ContainsRune(p, '\\'):
		return schemaerrors.NewInvalidPathErr(p, "path must use forward slashes")
	case strings.ContainsRune(p, 0):
		return schemaerrors.NewInvalidPathErr(p, "path contains a NUL byte")
	}

	for _, segment := range strings.Split(p, "/") {
		switch segment {
		case "":
			return schemaerrors.NewInvalidPathErr(p, "path contains an empty segment")
		case ".", "..":
			return schemaerrors.NewInvalidPathErr(p, "path contains a relative segment")
		}
	}
	return nil
}

// FromFilesystem converts a path relative to a source root, as produced by a
// directory walk on the host OS, into a schema path.
func FromFilesystem(rel string) (string, error) {
	p := path.Clean(filepath.ToSlash(rel))
	if err := Validate(p); err != nil {
		return "", err
	}
	return p, nil
}

// IsSchemaFile returns whether the file name has the schema extension.
func IsSchemaFile(name string) bool {
	return strings.EqualFold(path.Ext(name), SchemaExtension)
}

// Split splits a schema path into its segments.
func Split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
