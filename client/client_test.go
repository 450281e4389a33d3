package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/dispatcher"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/runner"
	"github.com/hupe1980/useragents/server"
)

func newBackend(t *testing.T, optFns ...func(o *server.Options)) *server.Server {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Scoped("echo").Register("echo", func(req core.AgentRequest) (core.Agent, error) {
		return agent.NewFuncAgent(req.AgentName, func(_ *core.RunContext, q string) (string, error) {
			return "echo: " + q, nil
		}), nil
	}))
	reg.Seal()

	return server.New(dispatcher.New(reg, runner.New()), reg, optFns...)
}

func TestClient_Run(t *testing.T) {
	ts := httptest.NewServer(newBackend(t))
	defer ts.Close()

	c := New(ts.URL)

	resp, err := c.Run(context.Background(), core.AgentRequest{AgentName: "echo", Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, core.AgentResponse{AgentName: "echo", Response: "echo: hi"}, resp)

	resp, err = c.Run(context.Background(), core.AgentRequest{AgentName: "nope", Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "agent nope not found in registry", resp.Response)
}

func TestClient_StrictStatus(t *testing.T) {
	ts := httptest.NewServer(newBackend(t, func(o *server.Options) { o.StrictStatus = true }))
	defer ts.Close()

	resp, err := New(ts.URL).Run(context.Background(), core.AgentRequest{AgentName: "nope", Query: "hi"})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "agent nope not found in registry", resp.Response)
}

func TestClient_AgentsAndHealth(t *testing.T) {
	ts := httptest.NewServer(newBackend(t))
	defer ts.Close()

	c := New(ts.URL + "/")

	agents, err := c.Agents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []registry.Entry{{Name: "echo", Origin: "echo"}}, agents)

	assert.NoError(t, c.Health(context.Background()))
}

func TestClient_TLS(t *testing.T) {
	ts := httptest.NewTLSServer(newBackend(t))
	defer ts.Close()

	_, err := New(ts.URL).Agents(context.Background())
	require.Error(t, err)

	agents, err := New(ts.URL, func(o *Options) { o.InsecureSkipVerify = true }).Agents(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	agents, err = New(ts.URL, func(o *Options) { o.HTTPClient = ts.Client() }).Agents(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestClient_BadRequest(t *testing.T) {
	ts := httptest.NewServer(newBackend(t))
	defer ts.Close()

	_, err := New(ts.URL).Run(context.Background(), core.AgentRequest{Query: "hi"})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}
