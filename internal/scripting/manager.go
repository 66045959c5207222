package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
)

// Manager owns one sandboxed VM holding every card hook. A hook is a global
// Lua function taking the env table and returning a list of effect tables
// shaped like catalog effect entries, or nil.
//
// Manager is safe for concurrent use; calls are serialized on the VM.
type Manager struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

var _ effects.ScriptRunner = (*Manager)(nil)

// NewManager creates a manager with an empty VM. instLimit <= 0 uses
// DefaultInstructionLimit.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	return &Manager{
		L:      NewSandboxedState(),
		limit:  instLimit,
		logger: logger,
	}
}

// LoadDir executes every *.lua file in dir in lexicographic order.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range files {
		if err := m.limited(func() error { return m.L.DoFile(path) }); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	if m.logger != nil {
		m.logger.Info("loaded card scripts", zap.String("dir", dir), zap.Int("files", len(files)))
	}
	return nil
}

// LoadString executes src, typically to define hooks in tests.
func (m *Manager) LoadString(src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.limited(func() error { return m.L.DoString(src) }); err != nil {
		return fmt.Errorf("scripting: loading source: %w", err)
	}
	return nil
}

// HasHook reports whether hook is defined.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// RunHook calls hook with env and converts what it returns.
func (m *Manager) RunHook(hook string, env effects.ScriptEnv) ([]card.Effect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("scripting: hook %q is not defined", hook)
	}
	err := m.limited(func() error {
		return m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, envTable(m.L, env))
	})
	if err != nil {
		return nil, fmt.Errorf("scripting: hook %q: %w", hook, err)
	}
	ret := m.L.Get(-1)
	m.L.Pop(1)

	out, err := toEffects(ret)
	if err != nil {
		return nil, fmt.Errorf("scripting: hook %q: %w", hook, err)
	}
	if m.logger != nil {
		m.logger.Debug("card script ran",
			zap.String("hook", hook),
			zap.String("card", env.SourceName),
			zap.Int("effects", len(out)))
	}
	return out, nil
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}

// limited runs fn under a fresh instruction budget.
func (m *Manager) limited(fn func() error) error {
	ctx, cancel := newCountingContext(m.limit)
	defer cancel()
	m.L.SetContext(ctx)
	defer m.L.RemoveContext()
	return fn()
}

func envTable(L *lua.LState, env effects.ScriptEnv) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("trigger", lua.LString(env.Trigger))
	t.RawSetString("source_id", lua.LString(env.SourceID))
	t.RawSetString("source_name", lua.LString(env.SourceName))
	t.RawSetString("source_atk", lua.LNumber(env.SourceAtk))
	t.RawSetString("source_hp", lua.LNumber(env.SourceHP))
	t.RawSetString("turn", lua.LNumber(env.Turn))
	t.RawSetString("player_hp", lua.LNumber(env.PlayerHP))
	t.RawSetString("opponent_hp", lua.LNumber(env.OpponentHP))
	t.RawSetString("friendly", lua.LNumber(env.Friendly))
	t.RawSetString("enemies", lua.LNumber(env.Enemies))
	t.RawSetString("hand_size", lua.LNumber(env.HandSize))
	t.RawSetString("player_index", lua.LNumber(env.PlayerIndex))
	return t
}

// toEffects converts a returned list of effect tables. nil means no effect.
func toEffects(v lua.LValue) ([]card.Effect, error) {
	if v == lua.LNil {
		return nil, nil
	}
	list, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("expected a list of effects, got %s", v.Type())
	}
	var out []card.Effect
	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("effect %d is not a table", i)
		}
		eff, err := toSpec(entry).Effect()
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		out = append(out, eff)
	}
	return out, nil
}

func toSpec(t *lua.LTable) card.EffectSpec {
	spec := card.EffectSpec{
		Type:    lua.LVAsString(t.RawGetString("type")),
		Amount:  int(lua.LVAsNumber(t.RawGetString("amount"))),
		Atk:     int(lua.LVAsNumber(t.RawGetString("atk"))),
		HP:      int(lua.LVAsNumber(t.RawGetString("hp"))),
		Target:  lua.LVAsString(t.RawGetString("target")),
		Into:    lua.LVAsString(t.RawGetString("into")),
		Keyword: lua.LVAsString(t.RawGetString("keyword")),
		Count:   int(lua.LVAsNumber(t.RawGetString("count"))),
		Hook:    lua.LVAsString(t.RawGetString("hook")),
		Lethal:  lua.LVAsBool(t.RawGetString("lethal")),
	}
	if tokens, ok := t.RawGetString("tokens").(*lua.LTable); ok {
		for i := 1; i <= tokens.Len(); i++ {
			spec.Tokens = append(spec.Tokens, lua.LVAsString(tokens.RawGetInt(i)))
		}
	}
	return spec
}
