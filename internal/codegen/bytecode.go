package codegen

import (
	"fmt"
	"unsafe"

	"github.com/autorun-labs/autorun/internal/luajit"
)

// SavedProto preserves a function's original bytecode and frame size so
// RestoreFunc can undo an OverwriteFunc, keyed by the function's GCproto
// address.
type SavedProto struct {
	Instructions []luajit.Instruction
	FrameSize    byte
	NumParams    byte
	Flags        byte
}

// BytecodeTrampolines owns the side table of saved proto bodies for every
// function this runtime has deep-detoured.
type BytecodeTrampolines struct {
	layout luajit.ProtoLayout
	saved  map[uintptr]SavedProto
}

// NewBytecodeTrampolines constructs an empty side table using layout (pass
// luajit.DefaultProtoLayout unless the host ships a patched LuaJIT).
func NewBytecodeTrampolines(layout luajit.ProtoLayout) *BytecodeTrampolines {
	return &BytecodeTrampolines{layout: layout, saved: make(map[uintptr]SavedProto)}
}

// OverwriteFunc rewrites protoAddr's body to call through upvalue slot 0
// (which the caller must already have rebound to the detour target)
// instead of executing its original instructions, per :
//
//   - a function header (FUNCF or FUNCV for varargs) with adequate frame
//     size,
//   - UGET of upvalue 0 (the detour target),
//   - a MOV of each formal argument into the call slots,
//   - for varargs, VARG then CALLMT; otherwise CALLT.
//
// protoAddr must have at least one upvalue slot and enough instruction
// slots for the replacement body (the caller is responsible for having
// allocated the proto with that headroom; this function does not grow the
// proto's code array).
func (b *BytecodeTrampolines) OverwriteFunc(protoAddr uintptr, numParams, frameSize byte, vararg bool) error {
	if _, already := b.saved[protoAddr]; already {
		return fmt.Errorf("codegen: proto %#x already detoured", protoAddr)
	}

	bcPtr := *(*uintptr)(unsafe.Pointer(protoAddr + b.layout.BytecodeOffset))
	origCount := int(frameSize) + 4 // header + uget + movs worst case + call, enough headroom check
	orig := make([]luajit.Instruction, origCount)
	for i := range orig {
		orig[i] = *(*luajit.Instruction)(unsafe.Pointer(bcPtr + uintptr(i)*4))
	}

	b.saved[protoAddr] = SavedProto{
		Instructions: orig,
		FrameSize:    *(*byte)(unsafe.Pointer(protoAddr + b.layout.FrameSizeOffset)),
		NumParams:    *(*byte)(unsafe.Pointer(protoAddr + b.layout.NumParamsOffset)),
		Flags:        *(*byte)(unsafe.Pointer(protoAddr + b.layout.FlagsOffset)),
	}

	body := buildOverwriteBody(numParams, frameSize, vararg)
	for i, ins := range body {
		*(*luajit.Instruction)(unsafe.Pointer(bcPtr + uintptr(i)*4)) = ins
	}

	*(*byte)(unsafe.Pointer(protoAddr + b.layout.FrameSizeOffset)) = frameSize
	*(*byte)(unsafe.Pointer(protoAddr + b.layout.NumParamsOffset)) = numParams
	if vararg {
		*(*byte)(unsafe.Pointer(protoAddr + b.layout.FlagsOffset)) |= luajit.FlagVararg
	}

	return nil
}

// buildOverwriteBody constructs the replacement instruction sequence
// described in the bytecode trampoline bullet list.
func buildOverwriteBody(numParams, frameSize byte, vararg bool) []luajit.Instruction {
	// Function header: FUNCF (FUNCV for varargs) carrying the frame size.
	header := luajit.OpFUNCF
	if vararg {
		header = luajit.OpFUNCV
	}
	body := []luajit.Instruction{luajit.EncodeAD(header, frameSize, 0)}

	callBase := numParams
	if vararg {
		callBase++ // VARG needs a slot beyond the fixed params
	}

	// UGET: load upvalue 0 (rebound to the detour target) into the call
	// base register.
	body = append(body, luajit.EncodeAD(luajit.OpUGET, callBase, 0))

	// MOV each formal argument into its call slot, shifted past the
	// function value we just loaded.
	for i := byte(0); i < numParams; i++ {
		body = append(body, luajit.EncodeAD(luajit.OpMOV, callBase+1+i, uint16(i)))
	}

	if vararg {
		body = append(body, luajit.EncodeABC(luajit.OpVARG, callBase+1+numParams, 0, numParams))
		body = append(body, luajit.EncodeAD(luajit.OpCALLMT, callBase, uint16(numParams)))
	} else {
		body = append(body, luajit.EncodeAD(luajit.OpCALLT, callBase, uint16(numParams+1)))
	}

	return body
}

// RestoreFunc undoes a prior OverwriteFunc, restoring the proto's original
// instructions, frame size, param count, and flags.
func (b *BytecodeTrampolines) RestoreFunc(protoAddr uintptr) error {
	saved, ok := b.saved[protoAddr]
	if !ok {
		return fmt.Errorf("codegen: no saved proto for %#x", protoAddr)
	}

	bcPtr := *(*uintptr)(unsafe.Pointer(protoAddr + b.layout.BytecodeOffset))
	for i, ins := range saved.Instructions {
		*(*luajit.Instruction)(unsafe.Pointer(bcPtr + uintptr(i)*4)) = ins
	}
	*(*byte)(unsafe.Pointer(protoAddr + b.layout.FrameSizeOffset)) = saved.FrameSize
	*(*byte)(unsafe.Pointer(protoAddr + b.layout.NumParamsOffset)) = saved.NumParams
	*(*byte)(unsafe.Pointer(protoAddr + b.layout.FlagsOffset)) = saved.Flags

	delete(b.saved, protoAddr)
	return nil
}

// IsDetoured reports whether protoAddr currently has a saved original
// body (i.e. OverwriteFunc has been called and RestoreFunc has not).
func (b *BytecodeTrampolines) IsDetoured(protoAddr uintptr) bool {
	_, ok := b.saved[protoAddr]
	return ok
}
