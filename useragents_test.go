package useragents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/useragents/config"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/model/anthropic"
	"github.com/hupe1980/useragents/model/openai"
	"github.com/hupe1980/useragents/plugin"
	"github.com/hupe1980/useragents/registry"
)

const greetScript = `
local ua = require("useragents")

ua.register("greet", function(req)
  return function(query)
    return "hello " .. query
  end
end)
`

func newConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.lua"), []byte(greetScript), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("this is not lua"), 0o600))

	cfg := config.Default()
	cfg.Plugins.Dir = dir
	cfg.Plugins.Builtin = []string{"echo"}
	cfg.Server.PlainHTTP = true

	return cfg
}

func TestService_EndToEnd(t *testing.T) {
	svc, err := New(func(o *Options) {
		o.Config = newConfig(t)
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	defer svc.Close()

	assert.True(t, svc.Registry().Sealed())
	assert.Equal(t, []string{"echo", "greet"}, svc.Registry().Names())
	assert.Equal(t, []string{"echo", "greet"}, svc.Report().Loaded)
	require.Len(t, svc.Report().Failures, 1)
	assert.Equal(t, "broken", svc.Report().Failures[0].Unit)
	assert.False(t, svc.TLSEnabled())
	assert.Equal(t, "0.0.0.0:443", svc.Addr())

	ts := httptest.NewServer(svc.Handler())
	defer ts.Close()

	for query, want := range map[string]core.AgentResponse{
		`{"agent_name":"echo","instructions":"","query":"hello"}`:  {AgentName: "echo", Response: "hello"},
		`{"agent_name":"greet","instructions":"","query":"world"}`: {AgentName: "greet", Response: "hello world"},
		`{"agent_name":"broken","instructions":"","query":"x"}`:    {AgentName: "broken", Response: "agent broken not found in registry"},
	} {
		resp, err := http.Post(ts.URL+"/api/v1/agent", "application/json", bytes.NewBufferString(query))
		require.NoError(t, err)

		var got core.AgentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, got)
	}
}

func TestService_ExtraPlugins(t *testing.T) {
	cfg := config.Default()

	svc, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
		o.SkipPluginDir = true
		o.Plugins = []plugin.Plugin{plugin.NewFunc("custom", func(r registry.Registrar) error {
			return r.Register("custom", func(req core.AgentRequest) (core.Agent, error) {
				return nil, errors.New("not today")
			})
		})}
	})
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Dispatcher().Dispatch(context.Background(), core.AgentRequest{AgentName: "custom"})

	var ee *core.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, core.StageConstruct, ee.Stage)
}

func TestService_MissingPluginDir(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins.Dir = filepath.Join(t.TempDir(), "missing")

	_, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	})
	require.Error(t, err)
}

func TestService_UnknownBuiltin(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins.Builtin = []string{"nope"}

	_, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
		o.SkipPluginDir = true
	})
	require.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestBuildModels(t *testing.T) {
	temp := 0.1
	cfg := config.Default()
	cfg.Models = map[string]config.ModelConfig{
		"gpt":    {Provider: config.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test", Temperature: &temp},
		"claude": {Provider: config.ProviderAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "sk-ant", MaxTokens: 512},
		"fake":   {Provider: config.ProviderMock, Model: "fake-model"},
	}

	catalog, err := BuildModels(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "fake", "gpt"}, catalog.Names())

	assert.IsType(t, &openai.Model{}, catalog["gpt"])
	assert.Equal(t, "gpt-4o", catalog["gpt"].Info().Name)
	assert.IsType(t, &anthropic.Model{}, catalog["claude"])
	assert.Equal(t, "claude-3-5-haiku-latest", catalog["claude"].Info().Name)
	assert.IsType(t, &model.MockModel{}, catalog["fake"])

	cfg.Models["bad"] = config.ModelConfig{Provider: "other"}
	_, err = BuildModels(cfg)
	require.Error(t, err)
}

func TestBuiltinPlugins(t *testing.T) {
	plugins, err := BuiltinPlugins([]string{"echo", "web_search_tool"}, model.Catalog{}, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "echo", plugins[0].Name())
	assert.Equal(t, "web_search_tool", plugins[1].Name())
}
