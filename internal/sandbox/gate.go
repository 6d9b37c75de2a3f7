package sandbox

import (
	"github.com/autorun-labs/autorun/internal/ffi"
	"go.uber.org/zap"
)

// Guard is the caller-origin gate: every privileged Lua-facing function
// wraps its implementation in this check. It
// inspects the calling function's environment (getinfo(1, "f") then
// getfenv(-1)) and compares it by raw equality to this realm's
// environment handle. Scripts that capture a reference to a privileged
// function and invoke it from outside a sandbox frame get a bare
// raised error with no message, so the failure carries no provenance
// about why it failed.
func (e *Env) Guard() error {
	s, vm := e.shim, e.vm

	ar, ok := s.GetStack(vm, 1)
	if !ok {
		e.logger.Warn("sandbox: caller-origin gate: no caller frame")
		return errEmptyDenied
	}
	s.GetInfo(vm, "f", &ar) // pushes the calling function onto the stack

	s.GetFenv(vm, -1) // pushes that function's environment
	e.pushEnvTable()

	same := s.RawEqual(vm, -1, -2)
	s.Pop(vm, 3) // callee env, caller env, caller function

	if !same {
		e.logger.Warn("sandbox: call outside of authorized environment denied",
			zap.String("realm", e.realm.String()))
		return errEmptyDenied
	}
	return nil
}

// IsFunctionAuthorized implements Autorun.isFunctionAuthorized(fn_or_level)
//: it reports whether the function value at the top of
// the stack, or the function running at the given numeric call-stack
// level, has this realm's environment handle as its function
// environment — the same raw-equality check Guard performs, exposed as
// a query instead of an enforcement gate.
func (e *Env) IsFunctionAuthorized(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	if err := e.Guard(); err != nil {
		return nil, err
	}

	switch s.TypeOf(vm, 1) {
	case ffi.TypeFunction:
		s.PushValue(vm, 1)
	case ffi.TypeNumber:
		level, err := s.PullInt(vm, 1)
		if err != nil {
			return nil, err
		}
		ar, ok := s.GetStack(vm, int(level))
		if !ok {
			return []any{false}, nil
		}
		s.GetInfo(vm, "f", &ar)
	default:
		return nil, errEmptyDenied
	}

	s.GetFenv(vm, -1)
	e.pushEnvTable()
	same := s.RawEqual(vm, -1, -2)
	s.Pop(vm, 3)

	return []any{same}, nil
}

// errEmptyDenied is raised as an empty-string Lua error so the call
// appears to fail without leaking provenance.
var errEmptyDenied = emptyError{}

type emptyError struct{}

func (emptyError) Error() string { return "" }
