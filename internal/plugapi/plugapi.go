// Package plugapi builds the concrete sandbox.Privileges implementation
// backing every Autorun.* privileged function: file capability access
// rooted at the calling plugin's source/data directories, the event-bus
// trigger primitive, and the detour primitives.
//
// Privileges close over an *EnvRef rather than a *sandbox.Env directly,
// because sandbox.New needs a populated Privileges value before it can
// construct the Env the Privileges themselves need to call Guard()
// against — the caller (internal/runtime) resolves this by building the
// Privileges first, calling sandbox.New, then filling in ref.Env.
package plugapi

import (
	"fmt"
	"strings"

	"github.com/autorun-labs/autorun/internal/detour"
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/autorun-labs/autorun/internal/sandbox"
	"github.com/autorun-labs/autorun/internal/workspace"
	"go.uber.org/zap"
)

// Dependencies are the process-wide collaborators a realm's privileged
// function set needs, all owned by internal/runtime.Runtime.
type Dependencies struct {
	Registry        *realm.Registry
	Detours         *detour.Engine
	Logger          *zap.Logger
	DetourInstalled func() // internal/runtime.Runtime.RecordDetourInstalled
}

// EnvRef is the indirection box described in the package doc: empty when
// Build returns, populated by the caller immediately after sandbox.New.
type EnvRef struct {
	Env *sandbox.Env
}

// Builder accumulates the realm-specific state (currently just the
// environment back-reference) behind one sandbox.Privileges value.
// Installed detours are tracked in the process-global callback registry
// (see detour.go), not per Builder.
type Builder struct {
	deps Dependencies
	re   realm.Realm
	ref  *EnvRef
}

// NewBuilder constructs a Builder for realm re over deps. Call Build to
// obtain the Privileges value and its EnvRef.
func NewBuilder(deps Dependencies, re realm.Realm) *Builder {
	return &Builder{
		deps: deps,
		re:   re,
		ref:  &EnvRef{},
	}
}

// Build returns the Privileges value to pass into sandbox.New, and the
// EnvRef the caller must populate with the resulting *sandbox.Env before
// any script code can reach these functions.
func (b *Builder) Build() (sandbox.Privileges, *EnvRef) {
	return sandbox.Privileges{
		Print:                b.print,
		Read:                 b.read,
		Write:                b.write,
		WriteAsync:           b.writeAsync,
		Mkdir:                b.mkdir,
		Exists:               b.exists,
		Load:                 b.load,
		Append:               b.appendFile,
		Trigger:              b.trigger,
		IsFunctionAuthorized: b.isFunctionAuthorized,
		Detour:               b.detour,
		DetourEnable:         b.detourEnable,
		DetourDisable:        b.detourDisable,
	}, b.ref
}

func (b *Builder) env() *sandbox.Env { return b.ref.Env }

// activePlugin runs Guard() then resolves the calling plugin, the
// preamble every file-capability primitive shares.
func (b *Builder) activePlugin() (*sandbox.Env, *workspace.Plugin, error) {
	env := b.env()
	if err := env.Guard(); err != nil {
		return nil, nil, err
	}
	p, err := env.ActivePlugin()
	if err != nil {
		return nil, nil, err
	}
	return env, p, nil
}

func (b *Builder) isFunctionAuthorized(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	return b.env().IsFunctionAuthorized(s, vm)
}

// print concatenates every argument passed to Autorun.print with single
// spaces, using a type-aware stringifier, and logs the result prefixed
// with the active plugin's name.
func (b *Builder) print(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	env := b.env()
	if err := env.Guard(); err != nil {
		return nil, err
	}
	text := joinArgs(s, vm)

	label := "Lua"
	if p, perr := env.ActivePlugin(); perr == nil {
		label = p.Name()
	}
	if b.deps.Logger != nil {
		b.deps.Logger.Info(fmt.Sprintf("[%s] %s", label, text))
	}
	return nil, nil
}

// joinArgs stringifies every value on the stack from index 1 to the
// current top and joins them with single spaces.
func joinArgs(s *ffi.Shim, vm ffi.VM) string {
	top := s.GetTop(vm)
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, stringifyArg(s, vm, i))
	}
	return strings.Join(parts, " ")
}

// stringifyArg renders the value at idx the way Autorun.print does: nil
// as "nil", booleans as "true"/"false", userdata/lightuserdata/cfunction
// as a pointer notation, and everything else through the host's own
// tostring global.
func stringifyArg(s *ffi.Shim, vm ffi.VM, idx int) string {
	switch s.TypeOf(vm, idx) {
	case ffi.TypeNil, ffi.TypeNone:
		return "nil"
	case ffi.TypeBoolean:
		if s.ToBool(vm, idx) {
			return "true"
		}
		return "false"
	case ffi.TypeLightUserdata, ffi.TypeUserdata:
		return fmt.Sprintf("userdata: 0x%016x", s.ToUserdata(vm, idx))
	case ffi.TypeFunction:
		if fn := s.ToCFunction(vm, idx); fn != 0 {
			return fmt.Sprintf("function: builtin: 0x%016x", fn)
		}
		return hostToString(s, vm, idx)
	default:
		return hostToString(s, vm, idx)
	}
}

// hostToString calls the host's global tostring on the value at idx,
// for types (numbers, strings, tables, non-C functions) the stringifier
// doesn't special-case itself.
func hostToString(s *ffi.Shim, vm ffi.VM, idx int) string {
	abs := idx
	if abs < 0 {
		abs = s.GetTop(vm) + idx + 1
	}
	s.GetField(vm, ffi.GlobalsIndex, "tostring")
	s.PushValue(vm, abs)
	if err := s.PCall(vm, 1, 1, 0); err != nil {
		s.Pop(vm, 1)
		return ""
	}
	str, _ := s.PullString(vm, -1)
	s.Pop(vm, 1)
	return str
}

func (b *Builder) read(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	body, err := p.ReadSource(path)
	if err != nil {
		return nil, fmt.Errorf("autorun: read %s: %w", path, err)
	}
	return []any{string(body)}, nil
}

func (b *Builder) write(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	content, err := s.PullString(vm, 2)
	if err != nil {
		return nil, err
	}
	if err := p.WriteData(path, []byte(content)); err != nil {
		return nil, fmt.Errorf("autorun: write %s: %w", path, err)
	}
	return nil, nil
}

// writeAsync runs the write on a background goroutine: it never touches
// the VM, so no main-thread hand-off is needed. Control returns to Lua
// immediately; the file lands in the plugin's data directory once the
// background write completes.
func (b *Builder) writeAsync(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	content, err := s.PullString(vm, 2)
	if err != nil {
		return nil, err
	}

	logger := b.deps.Logger
	go func(content []byte) {
		if err := p.WriteData(path, content); err != nil && logger != nil {
			logger.Error("autorun: writeAsync failed", zap.String("path", path), zap.Error(err))
		}
	}([]byte(content))

	return nil, nil
}

func (b *Builder) mkdir(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	created, err := p.MkdirData(path)
	if err != nil {
		return nil, fmt.Errorf("autorun: mkdir %s: %w", path, err)
	}
	return []any{created}, nil
}

func (b *Builder) exists(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	ok, err := p.ExistsSource(path)
	if err != nil {
		return nil, fmt.Errorf("autorun: exists %s: %w", path, err)
	}
	return []any{ok}, nil
}

func (b *Builder) appendFile(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	_, p, err := b.activePlugin()
	if err != nil {
		return nil, err
	}
	path, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	content, err := s.PullString(vm, 2)
	if err != nil {
		return nil, err
	}
	if err := p.AppendData(path, []byte(content)); err != nil {
		return nil, fmt.Errorf("autorun: append %s: %w", path, err)
	}
	return nil, nil
}

// load compiles source under a namespaced chunk name in text-only mode,
// per the load(source, chunk_name?): on success a function is
// returned, on failure (nil, message).
func (b *Builder) load(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	env := b.env()
	if err := env.Guard(); err != nil {
		return nil, err
	}
	source, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}
	name, err := s.OptString(vm, 2, "@load")
	if err != nil {
		return nil, err
	}
	if p, perr := env.ActivePlugin(); perr == nil {
		name = fmt.Sprintf("@%s/%s", p.Name(), name)
	}

	if loadErr := s.LoadBufferX(vm, []byte(source), name, ffi.ModeText); loadErr != nil {
		return []any{nil, loadErr.Error()}, nil
	}

	// LoadBufferX already pushed the compiled chunk; the caller (e.g. the
	// include.lua prelude chunk) is responsible for setfenv-ing it, this
	// function leaves the loaded chunk's environment unset.
	return []any{ffi.StackTop{}}, nil
}
