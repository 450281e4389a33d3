package plugin

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/logging"
	"github.com/hupe1980/useragents/model"
	"github.com/hupe1980/useragents/registry"
	"github.com/hupe1980/useragents/tool"
)

// Options configures a Loader.
type Options struct {
	Logger logging.Logger
	// Models resolves the model names used by table-form script agents.
	Models model.Catalog
	// Tools resolves the tool names used by table-form script agents.
	Tools tool.Catalog
	// HTTPClient backs the Lua http module.
	HTTPClient *http.Client
	// Extension selects script units in a plugin directory.
	Extension string
	// Reserved names a file that is never loaded as a unit (package marker).
	Reserved string
	// LoadTimeout bounds the top-level execution of one script state and each
	// constructor call.
	LoadTimeout time.Duration
}

// Loader runs extension units against a registry. A Loader is used during
// startup only; Close releases the Lua states backing script agents and must
// be called after the service stops.
type Loader struct {
	reg  *registry.Registry
	opts Options

	mu    sync.Mutex
	units []*luaUnit
}

// NewLoader returns a Loader that registers into reg.
func NewLoader(reg *registry.Registry, optFns ...func(o *Options)) *Loader {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		Models:      model.Catalog{},
		Tools:       tool.Builtins(),
		Extension:   ".lua",
		Reserved:    "init.lua",
		LoadTimeout: 10 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}
	}

	return &Loader{reg: reg, opts: opts}
}

// LoadStatic registers compiled plugins in the given order.
func (l *Loader) LoadStatic(plugins ...Plugin) *Report {
	report := &Report{}

	for _, p := range plugins {
		if p == nil {
			continue
		}

		unit := p.Name()
		stage := &stagingRegistrar{}

		if err := safeRegister(p, stage); err != nil {
			l.reportFailure(report, unit, err)
			continue
		}

		l.commit(report, unit, stage.staged)
	}

	return report
}

// LoadDir loads every script unit in dir, in directory-listing order. A
// missing or unreadable directory is fatal; failures of individual units are
// recorded in the report and loading continues.
func (l *Loader) LoadDir(dir string) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("plugin directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin directory: %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("plugin directory: %w", err)
	}

	report := &Report{}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, l.opts.Extension) || name == l.opts.Reserved {
			continue
		}

		path := filepath.Join(dir, name)
		unit := strings.TrimSuffix(name, l.opts.Extension)

		l.opts.Logger.Debug("plugin.load.start", "unit", unit, "path", path)

		u := newLuaUnit(unit, path, l.opts)
		staged, err := u.load()
		if err != nil {
			u.close()
			l.reportFailure(report, unit, err)
			continue
		}

		l.mu.Lock()
		l.units = append(l.units, u)
		l.mu.Unlock()

		l.commit(report, unit, staged)
	}

	return report, nil
}

// Close cancels running scripts and releases all Lua states created by
// LoadDir. It does not wait for running scripts to return.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, u := range l.units {
		u.close()
	}
	l.units = nil

	return nil
}

func (l *Loader) commit(report *Report, unit string, staged []stagedRegistration) {
	scoped := l.reg.Scoped(unit)

	var result *multierror.Error
	for _, s := range staged {
		if err := scoped.Register(s.name, s.constructor); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		report.Registered = append(report.Registered, registry.Entry{Name: s.name, Origin: unit})
	}

	if err := result.ErrorOrNil(); err != nil {
		l.reportFailure(report, unit, err)
		return
	}

	report.Loaded = append(report.Loaded, unit)
	l.opts.Logger.Info("plugin.load.completed", "unit", unit, "agents", len(staged))
}

func (l *Loader) reportFailure(report *Report, unit string, err error) {
	le := report.fail(unit, err)
	l.opts.Logger.Error("plugin.load.failed", "unit", unit, "error", le.Err.Error())
}

type stagedRegistration struct {
	name        string
	constructor core.Constructor
}

// stagingRegistrar collects registrations until a unit finishes loading.
type stagingRegistrar struct {
	staged []stagedRegistration
}

func (s *stagingRegistrar) Register(name string, constructor core.Constructor) error {
	if name == "" || constructor == nil {
		return fmt.Errorf("%w: name=%q", core.ErrInvalidRegistration, name)
	}
	s.staged = append(s.staged, stagedRegistration{name: name, constructor: constructor})
	return nil
}

func safeRegister(p Plugin, r registry.Registrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &core.PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	if err := p.Register(r); err != nil {
		return err
	}

	return nil
}

var errRegisterAfterLoad = errors.New("register called after the unit finished loading")
