package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/kohkimakimoto/gluayaml"
	gopherjson "github.com/layeh/gopher-json"
	"github.com/yuin/gluare"
	lua "github.com/yuin/gopher-lua"

	"github.com/hupe1980/useragents/core"
)

const moduleName = "useragents"

// luaState is one interpreter that has run a unit's script. An LState is not
// safe for concurrent use, so a luaState serves one request at a time.
type luaState struct {
	L      *lua.LState
	ctors  map[string]*lua.LFunction
	names  []string
	loaded bool
}

// luaUnit is a pool of Lua states for one script file. Every state runs the
// file once; constructors look up their function by name in the state they
// borrow.
type luaUnit struct {
	name string
	path string
	opts Options

	mu      sync.Mutex
	idle    []*luaState
	closed  bool
	nextRun uint64
	running map[uint64]context.CancelFunc
}

func newLuaUnit(name, path string, opts Options) *luaUnit {
	return &luaUnit{
		name:    name,
		path:    path,
		opts:    opts,
		running: make(map[uint64]context.CancelFunc),
	}
}

// load runs the script's top level in the unit's first state and returns the
// registrations it staged.
func (u *luaUnit) load() ([]stagedRegistration, error) {
	st, err := u.newState()
	if err != nil {
		return nil, err
	}

	staged := make([]stagedRegistration, 0, len(st.names))
	for _, name := range st.names {
		staged = append(staged, stagedRegistration{name: name, constructor: u.constructor(name)})
	}

	u.release(st, true)

	return staged, nil
}

func (u *luaUnit) newState() (*luaState, error) {
	st := &luaState{L: lua.NewState(), ctors: make(map[string]*lua.LFunction)}

	L := st.L
	L.PreloadModule("json", gopherjson.Loader)
	L.PreloadModule("re", gluare.Loader)
	L.PreloadModule("yaml", gluayaml.Loader)
	L.PreloadModule("http", gluahttp.NewHttpModule(u.opts.HTTPClient).Loader)

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"register": func(L *lua.LState) int { return u.luaRegister(st, L) },
		"log":      u.luaLog,
		"models":   u.luaModels,
		"tools":    u.luaTools,
	})
	L.SetField(mod, "unit", lua.LString(u.name))

	L.SetGlobal(moduleName, mod)
	L.PreloadModule(moduleName, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})

	ctx, done := u.track(context.Background(), u.opts.LoadTimeout)
	defer done()

	L.SetContext(ctx)
	err := L.DoFile(u.path)
	L.RemoveContext()

	if err != nil {
		L.Close()
		return nil, err
	}

	st.loaded = true

	return st, nil
}

// acquire borrows an idle state or starts a new one. It never waits for a
// state that another request is using.
func (u *luaUnit) acquire() (*luaState, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil, fmt.Errorf("plugin %s is closed", u.name)
	}
	if n := len(u.idle); n > 0 {
		st := u.idle[n-1]
		u.idle = u.idle[:n-1]
		u.mu.Unlock()
		return st, nil
	}
	u.mu.Unlock()

	u.opts.Logger.Debug("plugin.state.new", "unit", u.name)

	return u.newState()
}

// release returns st to the pool. States that failed a call or outlived the
// unit are closed instead.
func (u *luaUnit) release(st *luaState, reuse bool) {
	u.mu.Lock()
	if reuse && !u.closed {
		u.idle = append(u.idle, st)
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	st.L.Close()
}

// track derives a context that close cancels. A positive timeout bounds it.
func (u *luaUnit) track(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		cancel()
		return ctx, cancel
	}
	id := u.nextRun
	u.nextRun++
	u.running[id] = cancel
	u.mu.Unlock()

	return ctx, func() {
		u.mu.Lock()
		delete(u.running, id)
		u.mu.Unlock()
		cancel()
	}
}

// close cancels running scripts and closes idle states. States still in use
// are closed by their borrower on release.
func (u *luaUnit) close() {
	u.mu.Lock()
	u.closed = true
	running := u.running
	u.running = make(map[uint64]context.CancelFunc)
	idle := u.idle
	u.idle = nil
	u.mu.Unlock()

	for _, cancel := range running {
		cancel()
	}
	for _, st := range idle {
		st.L.Close()
	}
}

// useragents.register(name, constructor)
func (u *luaUnit) luaRegister(st *luaState, L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	if st.loaded {
		L.RaiseError("%s", errRegisterAfterLoad.Error())
		return 0
	}
	if name == "" {
		L.ArgError(1, "agent name must not be empty")
		return 0
	}

	if _, ok := st.ctors[name]; !ok {
		st.names = append(st.names, name)
	}
	st.ctors[name] = fn

	return 0
}

// useragents.log(message [, level])
func (u *luaUnit) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	level := L.OptString(2, "info")

	logger := u.opts.Logger
	switch level {
	case "debug":
		logger.Debug("plugin.script.log", "unit", u.name, "message", msg)
	case "warn":
		logger.Warn("plugin.script.log", "unit", u.name, "message", msg)
	case "error":
		logger.Error("plugin.script.log", "unit", u.name, "message", msg)
	default:
		logger.Info("plugin.script.log", "unit", u.name, "message", msg)
	}

	return 0
}

// useragents.models() -> { "name", ... }
func (u *luaUnit) luaModels(L *lua.LState) int {
	L.Push(stringList(L, u.opts.Models.Names()))
	return 1
}

// useragents.tools() -> { "name", ... }
func (u *luaUnit) luaTools(L *lua.LState) int {
	L.Push(stringList(L, u.opts.Tools.Names()))
	return 1
}

// constructor adapts the Lua constructor registered as name to
// core.Constructor. A handler agent keeps its borrowed state until it runs.
func (u *luaUnit) constructor(name string) core.Constructor {
	return func(req core.AgentRequest) (core.Agent, error) {
		st, err := u.acquire()
		if err != nil {
			return nil, err
		}

		a, err := u.construct(st, name, req)
		if err != nil {
			u.release(st, false)
			return nil, err
		}
		if la, ok := a.(*LuaAgent); ok {
			return la, nil
		}

		u.release(st, true)

		return a, nil
	}
}

func (u *luaUnit) construct(st *luaState, name string, req core.AgentRequest) (core.Agent, error) {
	fn, ok := st.ctors[name]
	if !ok {
		return nil, fmt.Errorf("agent %s: not registered by plugin %s", name, u.name)
	}

	ctx, done := u.track(context.Background(), u.opts.LoadTimeout)
	defer done()

	L := st.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, requestTable(L, req)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("agent %s: %w", name, ctxErr)
		}
		return nil, err
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LFunction:
		return &LuaAgent{unit: u, state: st, name: req.AgentName, handler: v, req: req}, nil
	case *lua.LTable:
		spec, err := parseAgentSpec(v)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
		return spec.build(req, u.opts.Models, u.opts.Tools)
	case *lua.LNilType:
		return nil, nil
	default:
		return nil, fmt.Errorf("agent %s: constructor returned %s, want function or table", name, ret.Type())
	}
}

func requestTable(L *lua.LState, req core.AgentRequest) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("agent_name", lua.LString(req.AgentName))
	t.RawSetString("instructions", lua.LString(req.Instructions))
	t.RawSetString("query", lua.LString(req.Query))
	return t
}

func stringList(L *lua.LState, values []string) *lua.LTable {
	t := L.CreateTable(len(values), 0)
	for _, v := range values {
		t.Append(lua.LString(v))
	}
	return t
}
