// Package scripting hosts the embedded Lua VM. Operators drop .lua files into
// the scripts directory to react to game events (announcements, custom
// logging, balance probes) without rebuilding the server.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/gridfall/server/internal/engine"
	"github.com/gridfall/server/internal/world"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only: the game
// engine delivers events while holding its own lock, so no further
// synchronization is needed here.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

var _ engine.Subscriber = (*Engine)(nil)

// PublishEvent calls the Lua on_event(ev) hook, if the scripts define one.
// Script errors are logged and swallowed; a broken script never stalls the
// game.
func (e *Engine) PublishEvent(ev *world.Event) {
	fn := e.vm.GetGlobal("on_event")
	if fn == lua.LNil {
		return
	}

	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ev.Kind))
	t.RawSetString("actor", lua.LString(ev.Actor))
	t.RawSetString("target", lua.LString(ev.Target))
	t.RawSetString("at", lua.LNumber(ev.At.Unix()))
	t.RawSetString("payload", e.toLua(ev.Payload))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_event error", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

// PublishSnapshot calls the Lua on_tick(tick, agent_count, resource_count)
// hook, if defined.
func (e *Engine) PublishSnapshot(snap *engine.Snapshot) {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(snap.Tick), lua.LNumber(len(snap.Agents)), lua.LNumber(len(snap.Resources))); err != nil {
		e.log.Error("lua on_tick error", zap.Error(err))
	}
}

// toLua converts an event payload value into a Lua value. Unknown types map
// to their string form rather than failing the hook.
func (e *Engine) toLua(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case time.Time:
		return lua.LNumber(val.Unix())
	case []int:
		t := e.vm.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LNumber(item))
		}
		return t
	case []string:
		t := e.vm.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case []any:
		t := e.vm.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, e.toLua(item))
		}
		return t
	case map[string]any:
		t := e.vm.NewTable()
		for k, item := range val {
			t.RawSetString(k, e.toLua(item))
		}
		return t
	}
	return lua.LString(fmt.Sprintf("%v", v))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
