package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sean-/sysexits"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authzed/jsonschemas/pkg/cmd/util"
	"github.com/authzed/jsonschemas/pkg/schemaerrors"
	"github.com/authzed/jsonschemas/pkg/testutil"
)

func writeSchema(t *testing.T, dir, rel, contents string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o600))
}

func testConfig(sources ...string) *Config {
	return &Config{
		SchemasHost:      "schemas.example.com",
		SchemasURLScheme: "https",
		SchemasEndpoint:  DefaultSchemasEndpoint,
		Sources:          sources,
		SchemaCache:      CacheConfig{Name: "server-test", MaxEntries: 10},
		HTTPServer:       util.HTTPServerConfig{Enabled: true, Address: "127.0.0.1:0"},
		HTTPCacheMaxAge:  time.Hour,
	}
}

func TestServerGracefulTermination(t *testing.T) {
	defer goleak.VerifyNone(t, append(testutil.GoLeakIgnores(), goleak.IgnoreCurrent())...)

	dir := t.TempDir()
	writeSchema(t, dir, "record.json", `{"properties": {"title": {"type": "string"}}}`)
	writeSchema(t, dir, "animal.json", `{"allOf": [{"$ref": "record.json"}, {"properties": {"specie": {"type": "string"}}}]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rs, err := testConfig("biology=" + dir).Complete(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- rs.Run(ctx)
	}()

	addr := rs.HTTPAddr()
	require.NotNil(t, addr)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(fmt.Sprintf("http://%s/schemas/animal.json?resolved=1", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	testutil.RequireJSONBytes(t, `{"properties": {"title": {"type": "string"}, "specie": {"type": "string"}}}`, body)

	cancel()
	require.NoError(t, <-done)
}

func TestCompleteDuplicateIsTerminationError(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSchema(t, first, "shared.json", `{}`)
	writeSchema(t, second, "shared.json", `{}`)

	_, err := testConfig("first="+first, "second="+second).Complete(context.Background())
	require.Error(t, err)

	var termErr schemaerrors.TerminationError
	require.ErrorAs(t, err, &termErr)
	require.Equal(t, "registry", termErr.Component)
	require.Equal(t, "shared.json", termErr.Metadata["schema_path"])
	require.Equal(t, sysexits.Config, termErr.ExitCode())
}

func TestCompleteInvalidConfig(t *testing.T) {
	c := testConfig()
	c.SchemasURLScheme = "ftp"
	_, err := c.Complete(context.Background())
	require.ErrorContains(t, err, "invalid schemas url scheme")

	c = testConfig("no-equals-sign")
	_, err = c.Complete(context.Background())
	require.Error(t, err)

	c = testConfig()
	c.MiddlewareModification = []MiddlewareModification{{
		Operation:                OperationReplace,
		DependencyMiddlewareName: DefaultMiddlewarePromHTTP,
	}}
	_, err = c.Complete(context.Background())
	require.ErrorContains(t, err, "internal middleware")
}

func TestCompleteService(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "a.json", `{}`)
	writeSchema(t, dir, "b/c.json", `{}`)

	completed, err := testConfig("test="+dir).CompleteService(context.Background())
	require.NoError(t, err)
	defer completed.Close()

	entries, err := completed.Service.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "https://schemas.example.com/schemas/b/c.json", entries[1].URL)
}
