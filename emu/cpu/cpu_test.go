/*
 * MiniVM - CPU simulator tests.
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

package cpu

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minivm/minivm/emu/assembler"
	"github.com/minivm/minivm/emu/iodev"
	"github.com/minivm/minivm/emu/isa"
	"github.com/minivm/minivm/emu/memory"
)

func newCPU(t *testing.T) (*CPU, *memory.Memory) {
	t.Helper()
	mem := memory.NewMemory()
	c, err := New(mem, iodev.Null{})
	if err != nil {
		t.Fatalf("New got error: %v", err)
	}
	return c, mem
}

// loadSource assembles src and loads the image at the given address.
func loadSource(t *testing.T, c *CPU, src string, addr uint32) {
	t.Helper()
	image, err := assembler.Assemble(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Source %q got error: %v", src, err)
	}
	if err := c.LoadCode(addr, image); err != nil {
		t.Fatalf("LoadCode got error: %v", err)
	}
}

// runSource assembles, loads at start and runs from IP start.
func runSource(t *testing.T, src string, start uint32) (*CPU, *memory.Memory) {
	t.Helper()
	c, mem := newCPU(t)
	loadSource(t, c, src, start)
	c.ip.data = start
	if err := c.Run(); err != nil {
		t.Fatalf("Source %q run got error: %v", src, err)
	}
	return c, mem
}

func checkReg(t *testing.T, c *CPU, n int, want uint32) {
	t.Helper()
	if got := c.gen[n].data; got != want {
		t.Errorf("g%d got: 0x%08x expected: 0x%08x", n, got, want)
	}
}

func TestNew(t *testing.T) {
	c, _ := newCPU(t)
	if c.ip.code != isa.RegIP || c.sp.code != isa.RegSP {
		t.Errorf("Special register codes got: %02x, %02x expected: 00, 01", c.ip.code, c.sp.code)
	}
	for i := range c.gen {
		if c.gen[i].code != isa.GeneralCode(uint32(i)) {
			t.Errorf("g%d code got: 0x%02x expected: 0x%02x", i, c.gen[i].code, isa.GeneralCode(uint32(i)))
		}
		if c.gen[i].data != 0 {
			t.Errorf("g%d not zero at reset: 0x%08x", i, c.gen[i].data)
		}
	}

	if _, err := New(nil, iodev.Null{}); err == nil {
		t.Error("New without memory did not return error")
	}
	if _, err := New(memory.NewMemory(), nil); err == nil {
		t.Error("New without io did not return error")
	}
}

// Writing a word at any byte address and reading it back returns it bit
// for bit, and bytes of adjacent memory are unchanged.
func TestUnalignedWordAccess(t *testing.T) {
	c, mem := newCPU(t)
	for _, addr := range []uint32{0, 1, 2, 3, 5, 6, 7, 401} {
		// Surround with a known pattern.
		base := addr &^ 3
		if err := mem.PutWord(base, 0xa1a2a3a4); err != nil {
			t.Fatalf("PutWord got error: %v", err)
		}
		if err := mem.PutWord(base+4, 0xb1b2b3b4); err != nil {
			t.Fatalf("PutWord got error: %v", err)
		}

		if err := c.writeWord(addr, 0x11223344); err != nil {
			t.Errorf("writeWord at %d got error: %v", addr, err)
		}
		got, err := c.readWord(addr)
		if err != nil {
			t.Errorf("readWord at %d got error: %v", addr, err)
		}
		if got != 0x11223344 {
			t.Errorf("readWord at %d got: 0x%08x expected: 0x11223344", addr, got)
		}

		// Neighbouring bytes below and above the window are intact.
		for check := base; check < addr; check++ {
			by, err := c.readByte(check)
			want := uint8(0xa4 - (check - base))
			if err != nil || by != want {
				t.Errorf("Byte below at %d got: 0x%02x, %v expected: 0x%02x", check, by, err, want)
			}
		}
		for check := addr + 4; check < base+8; check++ {
			by, err := c.readByte(check)
			want := uint8(0xb4 - (check - base - 4))
			if err != nil || by != want {
				t.Errorf("Byte above at %d got: 0x%02x, %v expected: 0x%02x", check, by, err, want)
			}
		}
	}
}

func TestByteAccess(t *testing.T) {
	c, _ := newCPU(t)
	for i := uint32(0); i < 16; i++ {
		if err := c.writeByte(i, uint8(0x40+i)); err != nil {
			t.Errorf("writeByte at %d got error: %v", i, err)
		}
	}
	for i := uint32(0); i < 16; i++ {
		by, err := c.readByte(i)
		if err != nil {
			t.Errorf("readByte at %d got error: %v", i, err)
		}
		if by != uint8(0x40+i) {
			t.Errorf("readByte at %d got: 0x%02x expected: 0x%02x", i, by, 0x40+i)
		}
	}
}

func TestAccessOutOfRange(t *testing.T) {
	c, mem := newCPU(t)
	if _, err := c.readWord(mem.Size()); !errors.Is(err, memory.ErrRange) {
		t.Errorf("readWord above memory got: %v expected range error", err)
	}
	// An unaligned access at the top word needs the word above it.
	if _, err := c.readWord(mem.Size() - 2); !errors.Is(err, memory.ErrRange) {
		t.Errorf("readWord at top-2 got: %v expected range error", err)
	}
	if err := c.writeWord(mem.Size()-2, 1); !errors.Is(err, memory.ErrRange) {
		t.Errorf("writeWord at top-2 got: %v expected range error", err)
	}
}

// S1: a lone halt raises the flag and leaves every register zero.
func TestScenarioHalt(t *testing.T) {
	c, _ := runSource(t, "halt", 0)
	if !c.Halted() {
		t.Error("halt flag not raised")
	}
	if c.IP() != 0 {
		t.Errorf("IP got: 0x%08x expected: 0", c.IP())
	}
	for i := range c.gen {
		checkReg(t, c, i, 0)
	}
}

// S2: immediate to register.
func TestScenarioMovImmediate(t *testing.T) {
	c, _ := runSource(t, "mov $5 g0 halt", 0)
	checkReg(t, c, 0, 5)
	if !c.Halted() {
		t.Error("halt flag not raised")
	}
	if c.IP() != 10 {
		t.Errorf("IP got: %d expected: 10", c.IP())
	}
}

// S3: add two registers; the sum lands in the second.
func TestScenarioAddRegisters(t *testing.T) {
	c, _ := runSource(t, "mov $3 g0 mov $4 g1 add g0 g1 halt", 0)
	checkReg(t, c, 0, 3)
	checkReg(t, c, 1, 7)
}

// S4: compare and branch greater skips the clobbering mov.
func TestScenarioJumpGreater(t *testing.T) {
	c, _ := runSource(t, "mov $10 g0 mov $1 g1 cmp g0 g1 jg end mov $99 g0 end: halt", 0)
	checkReg(t, c, 0, 10)
	if !c.flags.greater || c.flags.equ {
		t.Errorf("Flags got: equ=%v greater=%v expected: equ=false greater=true",
			c.flags.equ, c.flags.greater)
	}
}

// S5: compare equal branches to the target.
func TestScenarioJumpEqual(t *testing.T) {
	c, _ := runSource(t, "mov $7 g0 mov $7 g1 cmp g0 g1 je tgt mov $1 g0 tgt: halt", 0)
	checkReg(t, c, 0, 7)
}

// S6: data definition read through a memory operand. The program starts
// after the one byte datum.
func TestScenarioDataDefinition(t *testing.T) {
	c, _ := newCPU(t)
	loadSource(t, c, "x byte 42 mov x g0 halt", 0)
	c.ip.data = 1
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	// The word at x carries the datum in its low byte and the following
	// code bytes above it.
	if got := c.gen[0].data & 0xff; got != 0x2a {
		t.Errorf("g0 low byte got: 0x%02x expected: 0x2a", got)
	}
	if !c.Halted() {
		t.Error("halt flag not raised")
	}
}

// After halt, further runs return immediately with no state change.
func TestHaltIdempotent(t *testing.T) {
	c, _ := runSource(t, "mov $3 g5 halt", 0)
	ip := c.IP()
	regs := c.gen
	for i := 0; i < 3; i++ {
		if err := c.Run(); err != nil {
			t.Errorf("Run after halt got error: %v", err)
		}
	}
	if c.IP() != ip {
		t.Errorf("IP moved after halt: 0x%08x expected: 0x%08x", c.IP(), ip)
	}
	if c.gen != regs {
		t.Error("Registers changed after halt")
	}
}

// cmp flag law: equ iff L==R, greater iff L>R unsigned, both clear iff
// L<R.
func TestCmpFlagLaw(t *testing.T) {
	tests := []struct {
		l, r         uint32
		equ, greater bool
	}{
		{0, 0, true, false},
		{5, 5, true, false},
		{3, 9, false, false},
		{9, 3, false, true},
		{0, 0xffffffff, false, false},
		{0xffffffff, 1, false, true},
		{0x80000000, 1, false, true},
	}
	for _, test := range tests {
		src := fmt.Sprintf("mov $%d g0 mov $%d g1 cmp g0 g1 halt", test.l, test.r)
		c, _ := runSource(t, src, 0)
		if c.flags.equ != test.equ || c.flags.greater != test.greater {
			t.Errorf("cmp %d, %d got: equ=%v greater=%v expected: equ=%v greater=%v",
				test.l, test.r, c.flags.equ, c.flags.greater, test.equ, test.greater)
		}
	}
}

// cmp writes no location.
func TestCmpWritesNothing(t *testing.T) {
	c, mem := newCPU(t)
	loadSource(t, c, "x word 123 mov $9 g0 cmp x g0 halt", 0)
	c.ip.data = 4
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	got, err := mem.GetWord(0)
	if err != nil || got != 123 {
		t.Errorf("Memory operand got: %d, %v expected: 123", got, err)
	}
	checkReg(t, c, 0, 9)
	if c.flags.equ || !c.flags.greater {
		t.Errorf("Flags got: equ=%v greater=%v expected: equ=false greater=true",
			c.flags.equ, c.flags.greater)
	}
}

// The stored value is always L-R, also in memory-register mode where the
// destination is the register.
func TestSubModes(t *testing.T) {
	// register-register: g1 = g0 - g1.
	c, _ := runSource(t, "mov $10 g0 mov $3 g1 sub g0 g1 halt", 0)
	checkReg(t, c, 1, 7)

	// memory-register: g0 = mem - g0.
	c, _ = newCPU(t)
	loadSource(t, c, "x word 50 mov $8 g0 sub x g0 halt", 0)
	c.ip.data = 4
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	checkReg(t, c, 0, 42)

	// register-memory: mem = g0 - mem, with unsigned wrap.
	c, mem := newCPU(t)
	loadSource(t, c, "x word 50 mov $8 g0 sub g0 x halt", 0)
	c.ip.data = 4
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	got, err := mem.GetWord(0)
	if err != nil || got != 0xffffffd6 {
		t.Errorf("Memory got: 0x%08x, %v expected: 0xffffffd6", got, err)
	}
}

func TestMulDiv(t *testing.T) {
	c, _ := runSource(t, "mov $6 g0 mul $7 g0 halt", 0)
	checkReg(t, c, 0, 42)

	c, _ = runSource(t, "mov $84 g0 mov $2 g1 div g0 g1 halt", 0)
	checkReg(t, c, 1, 42)

	// immediate-memory add into a data word.
	c, mem := newCPU(t)
	loadSource(t, c, "x word 40 add $2 x halt", 0)
	c.ip.data = 4
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	got, err := mem.GetWord(0)
	if err != nil || got != 42 {
		t.Errorf("Memory got: %d, %v expected: 42", got, err)
	}
}

func TestDivideByZero(t *testing.T) {
	c, _ := newCPU(t)
	loadSource(t, c, "mov $84 g0 mov $0 g1 div g0 g1 halt", 0)
	err := c.Run()
	if !errors.Is(err, ErrArith) {
		t.Errorf("Run got: %v expected arithmetic error", err)
	}
	if !c.Failed() {
		t.Error("error flag not raised")
	}
	if c.Halted() {
		t.Error("halt flag raised on failing step")
	}
	// The failing step does not advance IP past the div.
	if c.IP() != 20 {
		t.Errorf("IP got: %d expected: 20", c.IP())
	}
}

func TestJumpModes(t *testing.T) {
	// Immediate target.
	c, _ := runSource(t, "mov $1 g1 jump skip mov $99 g1 skip: halt", 0)
	checkReg(t, c, 1, 1)

	// Register target: g0 names the halt address.
	c, _ = runSource(t, "mov $26 g0 jump g0 mov $99 g1 halt", 0)
	checkReg(t, c, 1, 0)
	if c.IP() != 26 {
		t.Errorf("IP got: %d expected: 26", c.IP())
	}

	// Memory target: a numeric operand is indirect, the word at 8 names
	// the halt address.
	c, _ = runSource(t, "jump 8 halt pad: byte 0 v: word 6", 0)
	if c.IP() != 6 {
		t.Errorf("IP got: %d expected: 6", c.IP())
	}

	// Label target: a bare label branches to the label itself.
	c, _ = runSource(t, "jump end mov $99 g1 end: halt", 0)
	checkReg(t, c, 1, 0)
	if c.IP() != 16 {
		t.Errorf("IP got: %d expected: 16", c.IP())
	}
}

// Untaken conditional branches step over the instruction.
func TestBranchNotTaken(t *testing.T) {
	c, _ := runSource(t, "mov $1 g0 mov $2 g1 cmp g0 g1 jg over mov $42 g2 over: halt", 0)
	checkReg(t, c, 2, 42)

	c, _ = runSource(t, "mov $1 g0 mov $2 g1 cmp g0 g1 je over mov $7 g3 over: halt", 0)
	checkReg(t, c, 3, 7)
}

func TestUnknownOpcode(t *testing.T) {
	c, _ := newCPU(t)
	if err := c.LoadCode(0, []byte{0xff}); err != nil {
		t.Fatalf("LoadCode got error: %v", err)
	}
	err := c.Step()
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Step got: %v expected decode error", err)
	}
	if !c.Failed() {
		t.Error("error flag not raised")
	}
	if c.Halted() {
		t.Error("halt flag raised on decode error")
	}
}

func TestUnknownRegisterCode(t *testing.T) {
	c, _ := newCPU(t)
	// mov immediate 5 to register code 0xff, which no register carries.
	image := []byte{
		isa.OpMov, isa.ModeImmediateRegister,
		0x05, 0x00, 0x00, 0x00,
		0xff, 0x00, 0x00, 0x00,
	}
	if err := c.LoadCode(0, image); err != nil {
		t.Fatalf("LoadCode got error: %v", err)
	}
	if err := c.Step(); !errors.Is(err, ErrDecode) {
		t.Errorf("Step got: %v expected decode error", err)
	}
}

func TestBadAddressingMode(t *testing.T) {
	c, _ := newCPU(t)
	// add with a one operand mode byte.
	image := []byte{
		isa.OpAdd, isa.ModeImmediate,
		0x05, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
	}
	if err := c.LoadCode(0, image); err != nil {
		t.Fatalf("LoadCode got error: %v", err)
	}
	if err := c.Step(); !errors.Is(err, ErrDecode) {
		t.Errorf("Step got: %v expected decode error", err)
	}
}

// Instructions execute from unaligned addresses through the byte view.
func TestUnalignedExecution(t *testing.T) {
	c, _ := newCPU(t)
	loadSource(t, c, "mov $5 g0 halt", 3)
	c.ip.data = 3
	if err := c.Run(); err != nil {
		t.Fatalf("Run got error: %v", err)
	}
	checkReg(t, c, 0, 5)
	if c.IP() != 13 {
		t.Errorf("IP got: %d expected: 13", c.IP())
	}
}

// A step that runs off the top of memory fails and stops the run.
func TestRunOffMemory(t *testing.T) {
	c, mem := newCPU(t)
	top := mem.Size() - isa.WordSize
	if err := mem.PutWord(top, uint32(isa.OpAdd)); err != nil {
		t.Fatalf("PutWord got error: %v", err)
	}
	c.ip.data = top
	err := c.Run()
	if !errors.Is(err, memory.ErrRange) {
		t.Errorf("Run got: %v expected range error", err)
	}
	if !c.Failed() {
		t.Error("error flag not raised")
	}
	if c.Halted() {
		t.Error("halt flag raised on memory error")
	}
}

func TestLoadCode(t *testing.T) {
	c, mem := newCPU(t)
	code := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	if err := c.LoadCode(2, code); err != nil {
		t.Fatalf("LoadCode got error: %v", err)
	}
	for i, want := range code {
		by, err := c.readByte(2 + uint32(i))
		if err != nil || by != want {
			t.Errorf("Byte %d got: 0x%02x, %v expected: 0x%02x", i, by, err, want)
		}
	}
	// Bytes before the image stay zero.
	by, err := c.readByte(0)
	if err != nil || by != 0 {
		t.Errorf("Byte 0 got: 0x%02x, %v expected: 0", by, err)
	}

	// Loading past the end of memory fails.
	if err := c.LoadCode(mem.Size()-2, code); !errors.Is(err, memory.ErrRange) {
		t.Errorf("LoadCode past top got: %v expected range error", err)
	}
}

func TestDumpState(t *testing.T) {
	c, _ := runSource(t, "mov $5 g0 halt", 0)
	var out strings.Builder
	c.DumpState(&out)
	text := out.String()
	for _, want := range []string{
		"HALT   : 0x01",
		"ERROR  : 0x00",
		"IP: 0x0000000a",
		"g0: 0x00000005",
		"g15: 0x00000000",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("DumpState output missing %q in:\n%s", want, text)
		}
	}
}
