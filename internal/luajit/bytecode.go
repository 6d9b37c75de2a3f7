// Package luajit carries the subset of LuaJIT's bytecode layout needed by
// internal/codegen's bytecode trampoline: opcode constants
// and the GCproto field offsets a deep function detour must patch. These
// mirror LuaJIT's public bytecode instruction format (lj_bc.h) and object
// layout (lj_obj.h) — this package does not reimplement the VM, only the
// byte-level shapes needed to overwrite a proto's body in place.
package luajit

// Op is a LuaJIT bytecode opcode. Instruction encoding is always
// (opcode byte, operand A byte, operand D half-word) or
// (opcode byte, operand A byte, operand B byte, operand C byte),
// little-endian, matching LuaJIT's BCINS_* macros.
type Op byte

const (
	// OpUGET loads an upvalue into a register: UGET A, D reads upvalue D
	// into slot A.
	OpUGET Op = 9
	// OpMOV copies a register: MOV A, D.
	OpMOV Op = 13
	// OpVARG collects varargs into registers starting at A: VARG A, B, C.
	OpVARG Op = 78
	// OpCALLT is a tail call: CALLT A, D (call fixed-arity, tail position).
	OpCALLT Op = 73
	// OpCALLMT is a tail call with trailing multres spread (varargs):
	// CALLMT A, D.
	OpCALLMT Op = 74
	// OpFUNCF is the fixed-arity Lua function header pseudo-instruction.
	OpFUNCF Op = 89
	// OpFUNCV is the vararg Lua function header pseudo-instruction.
	OpFUNCV Op = 91
)

// Instruction is one 4-byte LuaJIT bytecode instruction.
type Instruction uint32

// EncodeAD builds an (opcode, A, D) instruction.
func EncodeAD(op Op, a byte, d uint16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(d)<<16)
}

// EncodeABC builds an (opcode, A, B, C) instruction.
func EncodeABC(op Op, a, b, c byte) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(c)<<16 | uint32(b)<<24)
}

// Bytes returns the instruction's little-endian wire bytes.
func (i Instruction) Bytes() [4]byte {
	return [4]byte{
		byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24),
	}
}

// ProtoLayout describes the GCproto field offsets this codebase needs,
// resolved once per host build from the host's known LuaJIT version. Only
// the fields the bytecode trampoline touches are modeled.
type ProtoLayout struct {
	// BytecodeOffset is the byte offset of the `bc` pointer field (first
	// instruction of the proto's code array) within GCproto.
	BytecodeOffset uintptr
	// FrameSizeOffset is the byte offset of the `framesize` field.
	FrameSizeOffset uintptr
	// NumParamsOffset is the byte offset of the `numparams` field.
	NumParamsOffset uintptr
	// FlagsOffset is the byte offset of the `flags` field (bit 2 is
	// PROTO_VARARG in upstream LuaJIT).
	FlagsOffset uintptr
}

// FlagVararg is the GCproto flags bit marking a vararg function.
const FlagVararg = 1 << 2

// DefaultProtoLayout is the field layout for upstream LuaJIT 2.1 on
// 64-bit hosts. Games that ship a patched LuaJIT may require an override;
// internal/codegen accepts one via NewBytecodeTrampolines.
var DefaultProtoLayout = ProtoLayout{
	BytecodeOffset:  0,
	FrameSizeOffset: 14,
	NumParamsOffset: 15,
	FlagsOffset:     16,
}
