/*
 * MiniVM - Instruction set model shared by the assembler and the CPU.
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

package isa

// WordSize is the machine word width in bytes. Words are little endian.
const WordSize = 4

// Opcodes.
const (
	OpAdd  = 0x01
	OpSub  = 0x02
	OpJump = 0x03
	OpHalt = 0x04
	OpMov  = 0x05
	OpCmp  = 0x06
	OpJg   = 0x07
	OpJe   = 0x08
	OpMul  = 0x09
	OpDiv  = 0x0a
)

// Addressing modes. The mode byte follows the opcode and selects the
// shape of the operand words.
const (
	ModeRegister          = 0 // one operand: register code
	ModeMemory            = 1 // one operand: memory address
	ModeImmediate         = 2 // one operand: literal value
	ModeRegisterMemory    = 3 // register code, memory address
	ModeRegisterRegister  = 4 // register code, register code
	ModeMemoryRegister    = 5 // memory address, register code
	ModeImmediateMemory   = 6 // literal value, memory address
	ModeImmediateRegister = 7 // literal value, register code
)

// Register codes used in the binary encoding. A register is located by
// its code, never by its textual name.
const (
	RegIP = 0x00
	RegSP = 0x01
	RegG0 = 0x02
)

// NrGeneral is the number of general purpose registers g0..g15.
const NrGeneral = 16

// GeneralCode returns the encoding code of general register gN.
func GeneralCode(n uint32) uint32 {
	return RegG0 + n
}

// Command describes one instruction mnemonic.
type Command struct {
	Name     string // Mnemonic.
	Opcode   uint8  // Encoded opcode byte.
	Operands int    // Number of operands.
}

// Commands is the instruction table, in opcode order.
var Commands = []Command{
	{"add", OpAdd, 2},
	{"sub", OpSub, 2},
	{"jump", OpJump, 1},
	{"halt", OpHalt, 0},
	{"mov", OpMov, 2},
	{"cmp", OpCmp, 2},
	{"jg", OpJg, 1},
	{"je", OpJe, 1},
	{"mul", OpMul, 2},
	{"div", OpDiv, 2},
}

// Lookup finds a command by mnemonic.
func Lookup(name string) (Command, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// IsCommand reports whether name is a known mnemonic.
func IsCommand(name string) bool {
	_, ok := Lookup(name)
	return ok
}
