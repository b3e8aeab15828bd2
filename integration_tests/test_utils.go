//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/server"
)

// envelope is the union of the success and error wire shapes.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details map[string]any  `json:"details"`
}

// runningGateway is a gateway serving on a loopback port.
type runningGateway struct {
	Server  *server.Server
	BaseURL string
	Client  *http.Client
}

// startGateway starts a gateway for cfg and stops it when the test ends.
func startGateway(t *testing.T, cfg *config.Config) *runningGateway {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(ctx, server.Dependencies{
		Config: cfg,
		Logger: logging.NewNopLogger(),
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("gateway did not stop")
		}
	})

	unbound := cfg.Server.Addr()
	require.Eventually(t, func() bool {
		return srv.Addr() != unbound
	}, 5*time.Second, 20*time.Millisecond, "gateway never started listening")

	return &runningGateway{
		Server:  srv,
		BaseURL: "http://" + srv.Addr(),
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// get fetches path and decodes the envelope.
func (g *runningGateway) get(t *testing.T, path string) (*http.Response, envelope) {
	t.Helper()

	resp, err := g.Client.Get(g.BaseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}
