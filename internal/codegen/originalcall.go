package codegen

// EmitOriginalCallTrampoline builds the small shim written into a
// callback's indirection cell: given a detour record
// pointer, it tail-calls the record's call-through method when invoked
// with the scripting runtime's calling convention, so a script callback
// can transparently "call the original".
//
// detourRecordPtr is passed as the trampoline's hidden first argument (the
// scripting runtime's C-function convention always reserves RDI/RCX for
// the VM state, which the underlying detour.Record.Call implementation
// reads off the stack itself; this trampoline only needs to get
// detourRecordPtr into a register the callThroughFn expects).
func EmitOriginalCallTrampoline(detourRecordPtr uintptr, callThroughFn uintptr) []byte {
	var buf []byte

	// movabs rax, imm64 (detour record pointer) -> stashed in RAX so the
	// call-through function can read it as its own first argument once
	// control transfers; callers that need SysV vs Win64 register
	// placement wrap this with the same convention logic as
	// EmitCallbackTrampoline.
	buf = append(buf, 0x48, 0xB8)
	rec := le64(uint64(detourRecordPtr))
	buf = append(buf, rec[:]...)

	// mov rdi, rax (SysV first-arg register)
	buf = append(buf, 0x48, 0x89, 0xC7)

	// movabs r11, imm64 (call-through function address; R11 is
	// caller-clobbered in both SysV and Win64, safe as a scratch jump
	// target)
	buf = append(buf, 0x49, 0xBB)
	fn := le64(uint64(callThroughFn))
	buf = append(buf, fn[:]...)

	// jmp r11
	buf = append(buf, 0x41, 0xFF, 0xE3)

	return buf
}
