// Package websearch provides the "web_search_tool" agent: a model-backed
// agent that answers with the caller's instructions and may look up the
// current date or fetch web pages while doing so.
package websearch

import (
	"fmt"

	"github.com/hupe1980/useragents/agent"
	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/plugin"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/tool"
)

// Name is both the unit name and the registered agent name.
const Name = "web_search_tool"

// Options configures the plugin.
type Options struct {
	// Model names the catalog entry backing the agent.
	Model string
	// Tools is the catalog the agent's tools are resolved from.
	Tools tool.Catalog
	// ToolNames lists the tools given to the agent.
	ToolNames []string
}

// New returns the websearch plugin. Registration fails when the configured
// model or one of the tools is missing, so the unit is reported as a load
// failure instead of failing per request.
func New(models model.Catalog, optFns ...func(o *Options)) plugin.Plugin {
	opts := Options{
		Model:     "openai",
		Tools:     tool.Builtins(),
		ToolNames: []string{"fetch_date", "fetch_url"},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return plugin.NewFunc(Name, func(r registry.Registrar) error {
		llm, err := models.Get(opts.Model)
		if err != nil {
			return err
		}

		tools, err := opts.Tools.Resolve(opts.ToolNames...)
		if err != nil {
			return fmt.Errorf("resolving tools: %w", err)
		}

		return r.Register(Name, func(req core.AgentRequest) (core.Agent, error) {
			return agent.NewModelAgent(req.AgentName, llm, func(o *agent.ModelAgentOptions) {
				o.Instruction = agent.NewInstructionFromText(req.Instructions)
				o.Description = "Answers questions using the web and the current date"
				o.Tools = tools
			}), nil
		})
	})
}
