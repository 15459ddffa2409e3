package util

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDisabledHTTP(t *testing.T) {
	s, err := (&HTTPServerConfig{Enabled: false}).Complete(zerolog.InfoLevel, nil)
	require.NoError(t, err)
	require.NoError(t, s.ListenAndServe())
	require.Nil(t, s.Addr())
	s.Close()
}

func TestMismatchedTLS(t *testing.T) {
	_, err := (&HTTPServerConfig{Enabled: true, TLSCertPath: "cert.pem", flagPrefix: "http"}).Complete(zerolog.InfoLevel, nil)
	require.ErrorContains(t, err, "--http-tls-key-path")
}

func TestServeAndClose(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	s, err := (&HTTPServerConfig{Enabled: true, Address: "127.0.0.1:0"}).Complete(zerolog.InfoLevel, handler)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	addr := s.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "ok", string(body))

	s.Close()
	require.NoError(t, <-done)
}

func TestRegisterHTTPServerFlags(t *testing.T) {
	var config HTTPServerConfig
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterHTTPServerFlags(flags, &config, "metrics", "metrics", ":9090", true)

	require.NoError(t, flags.Parse([]string{"--metrics-addr=:9191", "--metrics-tls-cert-path=cert.pem"}))
	require.Equal(t, ":9191", config.Address)
	require.Equal(t, "cert.pem", config.TLSCertPath)
	require.True(t, config.Enabled)
	require.Equal(t, "metrics", config.flagPrefix)
}
