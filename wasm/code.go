package wasm

import "github.com/wippyai/pxt-runtime/wasm/internal/leb"

// Opcodes used by guest bodies.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpLocalTee    byte = 0x22
	OpI32Const    byte = 0x41
	OpI32Eqz      byte = 0x45
	OpI32Add      byte = 0x6A
	OpI32Sub      byte = 0x6B
	OpI32Mul      byte = 0x6C
)

// blockVoid is the empty block type.
const blockVoid byte = 0x40

// Code builds a function body instruction by instruction.
type Code struct {
	w leb.Writer
}

func NewCode() *Code {
	return &Code{}
}

// Op appends an instruction without immediates.
func (c *Code) Op(op byte) *Code {
	c.w.Byte(op)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(OpLocalGet)
	c.w.U32(idx)
	return c
}

func (c *Code) LocalSet(idx uint32) *Code {
	c.w.Byte(OpLocalSet)
	c.w.U32(idx)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.S32(v)
	return c
}

func (c *Code) Call(fn uint32) *Code {
	c.w.Byte(OpCall)
	c.w.U32(fn)
	return c
}

// If opens a block without results taken when the popped i32 is non-zero.
// Close it with Op(OpEnd).
func (c *Code) If() *Code {
	c.w.Byte(OpIf)
	c.w.Byte(blockVoid)
	return c
}

// Bytes returns the instructions followed by the closing end.
func (c *Code) Bytes() []byte {
	body := make([]byte, 0, c.w.Len()+1)
	body = append(body, c.w.Bytes()...)
	return append(body, OpEnd)
}
