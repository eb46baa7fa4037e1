/*
 * MiniVM - CPU simulator.
 *
 * Copyright 2025, MiniVM Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package cpu executes binary images against a word granular memory.
//
// The CPU views memory as byte addressable: aligned word access delegates
// to the store, unaligned access splices two neighbouring words. That byte
// view is what lets variable length instructions live in a word granular
// store.
package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/minivm/minivm/emu/iodev"
	"github.com/minivm/minivm/emu/isa"
	"github.com/minivm/minivm/emu/memory"
)

// Execution failures. Memory access failures propagate from the memory
// package and are matchable there.
var (
	ErrDecode = errors.New("decode error")
	ErrArith  = errors.New("arithmetic error")
)

// instrLen2 and instrLen1 are the encoded lengths of two operand and one
// operand instructions: opcode, mode, and one word per operand.
const (
	instrLen2 = 2 + 2*isa.WordSize
	instrLen1 = 2 + isa.WordSize
)

type register struct {
	data uint32
	code uint32
}

type flags struct {
	halt    bool // CPU must not fetch further commands.
	error   bool // Some error appeared while executing a command.
	equ     bool // Last compare was equal.
	greater bool // Last compare was strictly greater, left over right.
}

type executor func(*CPU) error

// CPU owns its register file, flags and command table, and holds shared
// references to a memory and an I/O device for its whole lifetime.
type CPU struct {
	mem   *memory.Memory
	dev   iodev.Device
	flags flags
	ip    register
	sp    register
	gen   [isa.NrGeneral]register
	cmds  map[uint8]executor
}

// New builds a CPU over the given memory and I/O device. Register codes
// are assigned here and must be unique; execution locates a register by
// its code, never by name.
func New(mem *memory.Memory, dev iodev.Device) (*CPU, error) {
	if mem == nil || dev == nil {
		return nil, errors.New("cpu requires memory and io")
	}

	c := &CPU{mem: mem, dev: dev}
	c.ip.code = isa.RegIP
	c.sp.code = isa.RegSP

	seen := map[uint32]bool{c.ip.code: true, c.sp.code: true}
	for i := range c.gen {
		code := isa.GeneralCode(uint32(i))
		if seen[code] {
			return nil, fmt.Errorf("duplicate register code 0x%02x", code)
		}
		seen[code] = true
		c.gen[i].code = code
	}

	c.cmds = map[uint8]executor{
		isa.OpAdd:  (*CPU).add,
		isa.OpSub:  (*CPU).sub,
		isa.OpJump: (*CPU).jump,
		isa.OpHalt: (*CPU).halt,
		isa.OpMov:  (*CPU).mov,
		isa.OpCmp:  (*CPU).cmp,
		isa.OpJg:   (*CPU).jg,
		isa.OpJe:   (*CPU).je,
		isa.OpMul:  (*CPU).mul,
		isa.OpDiv:  (*CPU).div,
	}
	return c, nil
}

// Word access over byte addresses.

// readWord reads a word at an arbitrary byte address. An unaligned read
// splices the two aligned words covering the address.
func (c *CPU) readWord(addr uint32) (uint32, error) {
	k := addr % isa.WordSize
	if k == 0 {
		return c.mem.GetWord(addr)
	}

	base := addr - k
	w1, err := c.mem.GetWord(base)
	if err != nil {
		return 0, err
	}
	w2, err := c.mem.GetWord(base + isa.WordSize)
	if err != nil {
		return 0, err
	}

	var buf [2 * isa.WordSize]byte
	binary.LittleEndian.PutUint32(buf[:isa.WordSize], w1)
	binary.LittleEndian.PutUint32(buf[isa.WordSize:], w2)
	return binary.LittleEndian.Uint32(buf[k:]), nil
}

// writeWord stores a word at an arbitrary byte address. An unaligned
// write rewrites the byte window across the two aligned words and leaves
// their remaining bytes untouched.
func (c *CPU) writeWord(addr uint32, word uint32) error {
	k := addr % isa.WordSize
	if k == 0 {
		return c.mem.PutWord(addr, word)
	}

	base := addr - k
	w1, err := c.mem.GetWord(base)
	if err != nil {
		return err
	}
	w2, err := c.mem.GetWord(base + isa.WordSize)
	if err != nil {
		return err
	}

	var buf [2 * isa.WordSize]byte
	binary.LittleEndian.PutUint32(buf[:isa.WordSize], w1)
	binary.LittleEndian.PutUint32(buf[isa.WordSize:], w2)
	binary.LittleEndian.PutUint32(buf[k:], word)

	if err := c.mem.PutWord(base, binary.LittleEndian.Uint32(buf[:isa.WordSize])); err != nil {
		return err
	}
	return c.mem.PutWord(base+isa.WordSize, binary.LittleEndian.Uint32(buf[isa.WordSize:]))
}

// readByte composes over the word path.
func (c *CPU) readByte(addr uint32) (uint8, error) {
	word, err := c.readWord(addr)
	if err != nil {
		return 0, err
	}
	return uint8(word), nil
}

// writeByte reads the covering word, replaces the low byte and writes the
// word back.
func (c *CPU) writeByte(addr uint32, by uint8) error {
	word, err := c.readWord(addr)
	if err != nil {
		return err
	}
	word = (word &^ 0xff) | uint32(by)
	return c.writeWord(addr, word)
}

// Register file access. IP and SP are named fields, never reachable
// through a code.

func (c *CPU) regRead(code uint32) (uint32, error) {
	for i := range c.gen {
		if c.gen[i].code == code {
			return c.gen[i].data, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown register code 0x%02x", ErrDecode, code)
}

func (c *CPU) regWrite(code uint32, data uint32) error {
	for i := range c.gen {
		if c.gen[i].code == code {
			c.gen[i].data = data
			return nil
		}
	}
	return fmt.Errorf("%w: unknown register code 0x%02x", ErrDecode, code)
}

// Operand handling shared by the two operand executors.

// operands2 reads the mode byte and both operand words following the
// opcode at IP.
func (c *CPU) operands2() (uint8, uint32, uint32, error) {
	mode, err := c.readByte(c.ip.data + 1)
	if err != nil {
		return 0, 0, 0, err
	}
	op1, err := c.readWord(c.ip.data + 2)
	if err != nil {
		return 0, 0, 0, err
	}
	op2, err := c.readWord(c.ip.data + 2 + isa.WordSize)
	if err != nil {
		return 0, 0, 0, err
	}
	return mode, op1, op2, nil
}

// left resolves the effective left value of a two operand instruction.
func (c *CPU) left(mode uint8, op1 uint32) (uint32, error) {
	switch mode {
	case isa.ModeRegisterRegister, isa.ModeRegisterMemory:
		return c.regRead(op1)
	case isa.ModeMemoryRegister:
		return c.readWord(op1)
	case isa.ModeImmediateRegister, isa.ModeImmediateMemory:
		return op1, nil
	}
	return 0, fmt.Errorf("%w: bad addressing mode 0x%02x", ErrDecode, mode)
}

// right resolves the effective right value; it always lives at op2.
func (c *CPU) right(mode uint8, op2 uint32) (uint32, error) {
	switch mode {
	case isa.ModeRegisterRegister, isa.ModeMemoryRegister, isa.ModeImmediateRegister:
		return c.regRead(op2)
	case isa.ModeRegisterMemory, isa.ModeImmediateMemory:
		return c.readWord(op2)
	}
	return 0, fmt.Errorf("%w: bad addressing mode 0x%02x", ErrDecode, mode)
}

// store writes the result to op2's location.
func (c *CPU) store(mode uint8, op2 uint32, value uint32) error {
	switch mode {
	case isa.ModeRegisterRegister, isa.ModeMemoryRegister, isa.ModeImmediateRegister:
		return c.regWrite(op2, value)
	case isa.ModeRegisterMemory, isa.ModeImmediateMemory:
		return c.writeWord(op2, value)
	}
	return fmt.Errorf("%w: bad addressing mode 0x%02x", ErrDecode, mode)
}

// arith runs one two operand instruction: the new value is op(L, R),
// written to op2's location. Note this holds for sub and div as well: the
// stored value is always L-R or L/R, even in modes where the destination
// is the right operand's register.
func (c *CPU) arith(op func(l, r uint32) (uint32, error)) error {
	mode, op1, op2, err := c.operands2()
	if err != nil {
		return err
	}
	l, err := c.left(mode, op1)
	if err != nil {
		return err
	}
	r, err := c.right(mode, op2)
	if err != nil {
		return err
	}
	value, err := op(l, r)
	if err != nil {
		return err
	}
	if err := c.store(mode, op2, value); err != nil {
		return err
	}
	c.ip.data += instrLen2
	return nil
}

// Command executors. Each advances IP itself; shapes differ in how many
// bytes they consume.

func (c *CPU) add() error {
	return c.arith(func(l, r uint32) (uint32, error) { return l + r, nil })
}

func (c *CPU) sub() error {
	return c.arith(func(l, r uint32) (uint32, error) { return l - r, nil })
}

func (c *CPU) mul() error {
	return c.arith(func(l, r uint32) (uint32, error) { return l * r, nil })
}

func (c *CPU) div() error {
	return c.arith(func(l, r uint32) (uint32, error) {
		if r == 0 {
			return 0, fmt.Errorf("%w: divide by zero", ErrArith)
		}
		return l / r, nil
	})
}

func (c *CPU) mov() error {
	mode, op1, op2, err := c.operands2()
	if err != nil {
		return err
	}
	value, err := c.left(mode, op1)
	if err != nil {
		return err
	}
	if err := c.store(mode, op2, value); err != nil {
		return err
	}
	c.ip.data += instrLen2
	return nil
}

func (c *CPU) cmp() error {
	mode, op1, op2, err := c.operands2()
	if err != nil {
		return err
	}
	l, err := c.left(mode, op1)
	if err != nil {
		return err
	}
	r, err := c.right(mode, op2)
	if err != nil {
		return err
	}
	c.flags.equ = l == r
	c.flags.greater = l > r
	c.ip.data += instrLen2
	return nil
}

// branch resolves the target of a one operand branch and takes it when
// told to; an untaken branch steps over the instruction.
func (c *CPU) branch(take bool) error {
	if !take {
		c.ip.data += instrLen1
		return nil
	}

	mode, err := c.readByte(c.ip.data + 1)
	if err != nil {
		return err
	}
	op1, err := c.readWord(c.ip.data + 2)
	if err != nil {
		return err
	}

	var target uint32
	switch mode {
	case isa.ModeRegister:
		target, err = c.regRead(op1)
	case isa.ModeMemory:
		target, err = c.readWord(op1)
	case isa.ModeImmediate:
		target = op1
	default:
		err = fmt.Errorf("%w: bad addressing mode 0x%02x", ErrDecode, mode)
	}
	if err != nil {
		return err
	}
	c.ip.data = target
	return nil
}

func (c *CPU) jump() error {
	return c.branch(true)
}

func (c *CPU) jg() error {
	return c.branch(c.flags.greater)
}

func (c *CPU) je() error {
	return c.branch(c.flags.equ)
}

// halt raises the halt flag; IP stays on the halt instruction.
func (c *CPU) halt() error {
	c.flags.halt = true
	return nil
}

// Public surface.

// LoadCode copies an image into memory at the given byte address through
// the CPU byte path. The image is not retained.
func (c *CPU) LoadCode(addr uint32, code []byte) error {
	for i, by := range code {
		if err := c.writeByte(addr+uint32(i), by); err != nil {
			return err
		}
	}
	return nil
}

// ReadBytes reads up to n bytes starting at addr through the byte view.
// The slice is shorter when the range runs off memory.
func (c *CPU) ReadBytes(addr uint32, n int) []byte {
	buf := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		by, err := c.readByte(addr + uint32(i))
		if err != nil {
			break
		}
		buf = append(buf, by)
	}
	return buf
}

// Step fetches, decodes and executes a single instruction. Any decode,
// memory or arithmetic failure sets the error flag and aborts the step;
// halt is never set on failure.
func (c *CPU) Step() error {
	word, err := c.readWord(c.ip.data)
	if err != nil {
		c.flags.error = true
		return err
	}

	opcode := uint8(word)
	exec, ok := c.cmds[opcode]
	if !ok {
		c.flags.error = true
		return fmt.Errorf("%w: unknown opcode 0x%02x at 0x%08x", ErrDecode, opcode, c.ip.data)
	}

	if err := exec(c); err != nil {
		c.flags.error = true
		return err
	}
	return nil
}

// Run steps until halt is raised. A step failure returns immediately and
// leaves halt as it was; running a halted CPU returns at once with no
// state change.
func (c *CPU) Run() error {
	for !c.flags.halt {
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// IP returns the current instruction pointer.
func (c *CPU) IP() uint32 {
	return c.ip.data
}

// Halted reports whether the halt flag is raised.
func (c *CPU) Halted() bool {
	return c.flags.halt
}

// Failed reports whether the error flag is raised.
func (c *CPU) Failed() bool {
	return c.flags.error
}

func flagByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// DumpState writes the flags and the register file.
func (c *CPU) DumpState(w io.Writer) {
	fmt.Fprintln(w, "----------------  CPU   ----------------")
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintf(w, "\tHALT   : 0x%02x\n", flagByte(c.flags.halt))
	fmt.Fprintf(w, "\tERROR  : 0x%02x\n", flagByte(c.flags.error))
	fmt.Fprintf(w, "\tEQU    : 0x%02x\n", flagByte(c.flags.equ))
	fmt.Fprintf(w, "\tGREATER: 0x%02x\n", flagByte(c.flags.greater))
	fmt.Fprintln(w, "Registers:")
	fmt.Fprintf(w, "\tIP: 0x%08x\n", c.ip.data)
	fmt.Fprintf(w, "\tSP: 0x%08x\n", c.sp.data)
	for i := range c.gen {
		fmt.Fprintf(w, "\tg%d: 0x%08x\n", i, c.gen[i].data)
	}
}
