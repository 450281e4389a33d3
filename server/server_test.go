package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/dispatcher"
	"github.com/hupe1980/useragents/internal/testutil"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/runner"
)

func newTestServer(t *testing.T, optFns ...func(o *Options)) *Server {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Scoped("echo").Register("echo", func(req core.AgentRequest) (core.Agent, error) {
		return agent.NewFuncAgent(req.AgentName, func(rc *core.RunContext, q string) (string, error) {
			return req.Instructions + q + dispatcher.RequestIDFromContext(rc.Context), nil
		}), nil
	}))
	require.NoError(t, reg.Register("broken", func(core.AgentRequest) (core.Agent, error) {
		return nil, errors.New("no model")
	}))
	reg.Seal()

	return New(dispatcher.New(reg, runner.New()), reg, optFns...)
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent", strings.NewReader(body))
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return rec, out
}

func TestAgentRoute(t *testing.T) {
	s := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		rec, out := post(t, s, `{"agent_name":"echo","instructions":"> ","query":"hi "}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, map[string]any{"agent_name": "echo", "response": "> hi req-1"}, out)
	})

	t.Run("unknown agent still 200", func(t *testing.T) {
		rec, out := post(t, s, `{"agent_name":"missing","instructions":"","query":"x"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "agent missing not found in registry", out["response"])
	})

	t.Run("construct failure still 200", func(t *testing.T) {
		rec, out := post(t, s, `{"agent_name":"broken","instructions":"","query":"x"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, out["response"], "no model")
	})

	t.Run("missing field", func(t *testing.T) {
		rec, out := post(t, s, `{"agent_name":"echo","query":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, out["error"], "instructions")
	})

	t.Run("empty agent name", func(t *testing.T) {
		rec, _ := post(t, s, `{"agent_name":"","instructions":"","query":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, _ := post(t, s, `{"agent_name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAgentRoute_StrictStatus(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.StrictStatus = true })

	rec, out := post(t, s, `{"agent_name":"missing","instructions":"","query":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "missing", out["agent_name"])
	assert.Equal(t, "agent missing not found in registry", out["response"])

	rec, _ = post(t, s, `{"agent_name":"broken","instructions":"","query":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec, _ = post(t, s, `{"agent_name":"echo","instructions":"","query":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgentRoute_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agent", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAgentsAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var agents agentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	assert.Equal(t, []registry.Entry{{Name: "broken"}, {Name: "echo", Origin: "echo"}}, agents.Agents)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAgents_NilCatalog(t *testing.T) {
	s := New(dispatcher.New(registry.New(), runner.New()), nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	assert.JSONEq(t, `{"agents":[]}`, rec.Body.String())
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_TLS(t *testing.T) {
	files := testutil.SelfSignedCert(t)
	s := newTestServer(t, func(o *Options) {
		o.TLSCertFile = files.CertFile
		o.TLSKeyFile = files.KeyFile
	})
	require.True(t, s.TLSEnabled())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: files.Pool}}}

	resp, err := client.Post(
		"https://"+ln.Addr().String()+"/api/v1/agent",
		"application/json",
		strings.NewReader(`{"agent_name":"echo","instructions":"","query":"secure"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out core.AgentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Response, "secure"))
}

func TestAddr(t *testing.T) {
	s := New(nil, nil, func(o *Options) {
		o.Address = "127.0.0.1"
		o.Port = 8443
	})
	assert.Equal(t, "127.0.0.1:8443", s.Addr())
	assert.False(t, s.TLSEnabled())
}
