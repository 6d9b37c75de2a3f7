package plugapi

import (
	"fmt"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/realm"
	"go.uber.org/zap"
)

// trigger is the host primitive the prelude event bus's Autorun.trigger
// wraps (event.lua's hostTrigger): it forwards name and at most one
// scalar value to the opposite realm via the realm registry. Tables are
// rejected before a realm.RemoteValue is built.
func (b *Builder) trigger(s *ffi.Shim, vm ffi.VM) ([]any, error) {
	env := b.env()
	if err := env.Guard(); err != nil {
		return nil, err
	}

	name, err := s.PullString(vm, 1)
	if err != nil {
		return nil, err
	}

	value, err := remoteValueAt(s, vm, 2)
	if err != nil {
		return nil, err
	}

	opposite := realm.Opposite(env.Realm())
	target, ok := b.deps.Registry.Target(opposite)
	if !ok {
		// No sandbox has been constructed for the opposite realm yet;
		// nothing to forward to.
		return nil, nil
	}

	if err := target.RunRemoteCallbacks(name, value); err != nil {
		if b.deps.Logger != nil {
			b.deps.Logger.Warn("plugapi: remote trigger dispatch failed", zap.Error(err))
		}
	}
	return nil, nil
}

func remoteValueAt(s *ffi.Shim, vm ffi.VM, idx int) (realm.RemoteValue, error) {
	switch s.TypeOf(vm, idx) {
	case ffi.TypeNil, ffi.TypeNone:
		return realm.RemoteValue{Kind: realm.RemoteNil}, nil
	case ffi.TypeBoolean:
		return realm.RemoteValue{Kind: realm.RemoteBool, Bool: s.ToBool(vm, idx)}, nil
	case ffi.TypeNumber:
		return realm.RemoteValue{Kind: realm.RemoteNumber, Num: s.ToNumber(vm, idx)}, nil
	case ffi.TypeString:
		str, _ := s.PullString(vm, idx)
		return realm.RemoteValue{Kind: realm.RemoteString, Str: str}, nil
	default:
		return realm.RemoteValue{}, fmt.Errorf("autorun: trigger: unsupported remote value type %v", s.TypeOf(vm, idx))
	}
}
