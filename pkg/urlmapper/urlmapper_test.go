package urlmapper

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func setLookup(paths ...string) LookupFunc {
	registered := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		registered[p] = struct{}{}
	}
	return func(p string) bool {
		_, ok := registered[p]
		return ok
	}
}

func TestPathToURL(t *testing.T) {
	mapper, err := New("http", "test.org", "/jsonschemas", setLookup("biology/animal.json", "☺.json"))
	require.NoError(t, err)

	found, ok := mapper.PathToURL("biology/animal.json")
	require.True(t, ok)
	require.Equal(t, "http://test.org/jsonschemas/biology/animal.json", found)

	found, ok = mapper.PathToURL("☺.json")
	require.True(t, ok)
	require.Equal(t, "http://test.org/jsonschemas/%E2%98%BA.json", found)

	_, ok = mapper.PathToURL("unregistered.json")
	require.False(t, ok)

	require.Equal(t, "http://test.org/jsonschemas/", mapper.BaseURL())
}

func TestURLToPath(t *testing.T) {
	mapper, err := New("https", "test.org:8080", "schemas/", setLookup("a/b.json", "☺.json"))
	require.NoError(t, err)
	require.Equal(t, "/schemas", mapper.Prefix())

	tcs := []struct {
		url      string
		expected string
		ok       bool
	}{
		{"https://test.org:8080/schemas/a/b.json", "a/b.json", true},
		{"http://test.org:8080/schemas/a/b.json", "a/b.json", true},
		{"https://test.org:8080/schemas/a/b.json#/definitions/x", "a/b.json", true},
		{"https://test.org:8080/schemas/%E2%98%BA.json", "☺.json", true},
		{"https://test.org/schemas/a/b.json", "", false},
		{"https://other.org:8080/schemas/a/b.json", "", false},
		{"https://sub.test.org:8080/schemas/a/b.json", "", false},
		{"https://test.org:8080/other/a/b.json", "", false},
		{"https://test.org:8080/schemasa/b.json", "", false},
		{"https://test.org:8080/schemas/missing.json", "", false},
		{"https://test.org:8080/schemas/x/../a/b.json", "", false},
		{"https://test.org:8080/schemas//a/b.json", "", false},
		{"::not a url", "", false},
	}

	for _, tc := range tcs {
		t.Run(tc.url, func(t *testing.T) {
			found, ok := mapper.URLToPath(tc.url)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expected, found)
		})
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "test.org", "/schemas", setLookup())
	require.Error(t, err)

	_, err = New("https", "", "/schemas", setLookup())
	require.Error(t, err)

	_, err = New("https", "test.org/evil", "/schemas", setLookup())
	require.Error(t, err)

	mapper, err := New("https", "test.org", "", setLookup("a.json"))
	require.NoError(t, err)
	found, ok := mapper.PathToURL("a.json")
	require.True(t, ok)
	require.Equal(t, "https://test.org/a.json", found)
}

func TestRoundTrip(t *testing.T) {
	segment := rapid.StringMatching(`[a-zA-Z0-9_ ☺é%#?-]{1,12}`).Filter(func(s string) bool {
		return s != "." && s != ".."
	})

	rapid.Check(t, func(t *rapid.T) {
		segments := rapid.SliceOfN(segment, 1, 4).Draw(t, "segments")
		p := ""
		for i, s := range segments {
			if i > 0 {
				p += "/"
			}
			p += s
		}
		p += ".json"

		mapper, err := New("https", "schemas.example.com", "/prefix", setLookup(p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rendered, ok := mapper.PathToURL(p)
		if !ok {
			t.Fatalf("path %q not rendered", p)
		}

		back, ok := mapper.URLToPath(rendered)
		if !ok || back != p {
			t.Fatalf("round trip of %q through %q gave %q", p, rendered, back)
		}

		foreign, err := New("https", "other.example.com", "/prefix", setLookup(p))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := foreign.URLToPath(rendered); ok {
			t.Fatalf("foreign host accepted %q", rendered)
		}
	})
}
