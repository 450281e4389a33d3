// Package useragents wires the service together: it loads the
// configuration's model catalog, runs compiled and script plugins against a
// fresh registry, seals it and serves the dispatcher over HTTP.
//
// Most applications only need:
//
//	svc, err := useragents.New(func(o *useragents.Options) { o.Config = cfg })
//	if err != nil { ... }
//	defer svc.Close()
//	err = svc.Run(ctx)
package useragents

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/useragents/config"
	"github.com/hupe1980/useragents/dispatcher"
	"github.com/hupe1980/useragents/logging"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/model/anthropic"
	"github.com/hupe1980/useragents/model/openai"
	"github.com/hupe1980/useragents/plugin"
	"github.com/hupe1980/useragents/plugins/echo"
	"github.com/hupe1980/useragents/plugins/websearch"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/runner"
	"github.com/hupe1980/useragents/server"
	"github.com/hupe1980/useragents/tool"
)

// Options configures a Service.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	// Logger defaults to a logger built from Config.Logging.
	Logger logging.Logger
	// Models overrides the catalog built from Config.Models.
	Models model.Catalog
	// Tools is the catalog offered to plugins; defaults to tool.Builtins().
	Tools tool.Catalog
	// Plugins are loaded after the builtin plugins named in the config and
	// before the plugin directory.
	Plugins []plugin.Plugin
	// SkipPluginDir disables loading the configured plugin directory.
	SkipPluginDir bool
}

// Service is a fully loaded agent service. The registry is sealed by the
// time New returns.
type Service struct {
	cfg        *config.Config
	logger     logging.Logger
	registry   *registry.Registry
	loader     *plugin.Loader
	report     *plugin.Report
	dispatcher *dispatcher.Dispatcher
	server     *server.Server
}

// New loads all plugins and prepares the HTTP server. Units that fail to
// load are logged and listed in Report; an unreadable plugin directory is
// fatal.
func New(optFns ...func(o *Options)) (*Service, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(cfg.LoggerConfig())
	}
	if opts.Tools == nil {
		opts.Tools = tool.Builtins()
	}
	if opts.Models == nil {
		models, err := BuildModels(cfg)
		if err != nil {
			return nil, err
		}
		opts.Models = models
	}

	builtins, err := BuiltinPlugins(cfg.Plugins.Builtin, opts.Models, opts.Tools)
	if err != nil {
		return nil, err
	}

	reg := registry.New(func(o *registry.Options) {
		o.RejectDuplicates = cfg.Plugins.RejectDuplicates
		o.Logger = opts.Logger
	})

	loader := plugin.NewLoader(reg, func(o *plugin.Options) {
		o.Logger = opts.Logger
		o.Models = opts.Models
		o.Tools = opts.Tools
		o.LoadTimeout = cfg.Plugins.LoadTimeout
	})

	report := loader.LoadStatic(append(builtins, opts.Plugins...)...)

	if !opts.SkipPluginDir {
		dirReport, err := loader.LoadDir(cfg.Plugins.Dir)
		if err != nil {
			_ = loader.Close()
			return nil, err
		}
		report.Merge(dirReport)
	}

	reg.Seal()

	opts.Logger.Info(
		"service.loaded",
		"agents", reg.Len(),
		"units", len(report.Loaded),
		"failures", len(report.Failures),
	)

	exec := runner.New(func(o *runner.Options) {
		o.MaxConcurrentInvocations = cfg.Runner.MaxConcurrent
		o.MaxModelCalls = cfg.Runner.MaxModelCalls
		o.Timeout = cfg.Runner.Timeout
		o.Logger = opts.Logger
	})

	d := dispatcher.New(reg, exec, func(o *dispatcher.Options) {
		o.Logger = opts.Logger
	})

	srv := server.New(d, reg, func(o *server.Options) {
		o.Address = cfg.Server.Address
		o.Port = cfg.Server.Port
		if cfg.TLSEnabled() {
			o.TLSCertFile = cfg.Server.TLSCertFile
			o.TLSKeyFile = cfg.Server.TLSKeyFile
		}
		o.StrictStatus = cfg.Server.StrictStatus
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Logger = opts.Logger
	})

	return &Service{
		cfg:        cfg,
		logger:     opts.Logger,
		registry:   reg,
		loader:     loader,
		report:     report,
		dispatcher: d,
		server:     srv,
	}, nil
}

// Registry returns the sealed registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Report returns the outcome of the load phase.
func (s *Service) Report() *plugin.Report { return s.report }

// Dispatcher returns the request pipeline.
func (s *Service) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

// Handler returns the HTTP handler without starting a listener.
func (s *Service) Handler() http.Handler { return s.server }

// Addr returns the address Run listens on.
func (s *Service) Addr() string { return s.server.Addr() }

// TLSEnabled reports whether Run serves HTTPS.
func (s *Service) TLSEnabled() bool { return s.server.TLSEnabled() }

// Run serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.server.Run(ctx)
}

// Close releases the script states held by loaded plugins.
func (s *Service) Close() error {
	return s.loader.Close()
}

// BuildModels constructs the model catalog described by cfg.
func BuildModels(cfg *config.Config) (model.Catalog, error) {
	catalog := model.Catalog{}

	for _, name := range cfg.ModelNames() {
		mc := cfg.Models[name]

		switch mc.Provider {
		case config.ProviderOpenAI:
			catalog[name] = openai.NewModel(func(o *openai.Options) {
				if mc.Model != "" {
					o.Model = mc.Model
				}
				if mc.Temperature != nil {
					o.Temperature = *mc.Temperature
				}
				if mc.MaxTokens > 0 {
					o.MaxCompletionTokens = int64(mc.MaxTokens)
				}
				o.APIKey = mc.APIKey
				o.BaseURL = mc.BaseURL
			})
		case config.ProviderAnthropic:
			catalog[name] = anthropic.NewModel(func(o *anthropic.Options) {
				if mc.Model != "" {
					o.Model = sdkanthropic.Model(mc.Model)
				}
				if mc.Temperature != nil {
					o.Temperature = *mc.Temperature
				}
				if mc.MaxTokens > 0 {
					o.MaxTokens = int64(mc.MaxTokens)
				}
				o.APIKey = mc.APIKey
				o.BaseURL = mc.BaseURL
			})
		case config.ProviderMock:
			catalog[name] = model.NewMockModel(mc.Model, config.ProviderMock)
		default:
			return nil, fmt.Errorf("model %s: unknown provider %q", name, mc.Provider)
		}
	}

	return catalog, nil
}

// ErrUnknownPlugin is returned for a builtin plugin name that does not exist.
var ErrUnknownPlugin = errors.New("unknown builtin plugin")

// BuiltinPlugins returns the compiled plugins named in names.
func BuiltinPlugins(names []string, models model.Catalog, tools tool.Catalog) ([]plugin.Plugin, error) {
	plugins := make([]plugin.Plugin, 0, len(names))

	for _, name := range names {
		switch name {
		case echo.Name:
			plugins = append(plugins, echo.New())
		case websearch.Name:
			plugins = append(plugins, websearch.New(models, func(o *websearch.Options) {
				if tools != nil {
					o.Tools = tools
				}
			}))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
	}

	return plugins, nil
}
