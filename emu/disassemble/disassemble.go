/*
 * MiniVM - Instruction disassembler.
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

// Package disassemble renders encoded instructions back into source form.
// For an instruction the assembler emits, the output of Disassemble
// re-assembles to the same bytes.
package disassemble

import (
	"encoding/binary"
	"fmt"

	"github.com/minivm/minivm/emu/isa"
)

// Operand positions within an instruction, after opcode and mode byte.
const (
	op1Pos = 2
	op2Pos = 2 + isa.WordSize
)

// MaxLen is the longest encoded instruction in bytes.
const MaxLen = 2 + 2*isa.WordSize

func undefined(data []byte) (string, int) {
	return fmt.Sprintf("?? 0x%02x", data[0]), 1
}

// register renders an operand word holding a register code.
func register(code uint32) string {
	if code >= isa.RegG0 && code < isa.RegG0+isa.NrGeneral {
		return fmt.Sprintf("g%d", code-isa.RegG0)
	}
	return fmt.Sprintf("%d", code)
}

// Disassemble decodes one instruction from data and returns its source
// text and encoded length. Unknown opcodes and truncated or malformed
// encodings come back as a one byte ?? line.
func Disassemble(data []byte) (string, int) {
	if len(data) == 0 {
		return "", 0
	}

	var cmd isa.Command
	found := false
	for _, c := range isa.Commands {
		if c.Opcode == data[0] {
			cmd, found = c, true
			break
		}
	}
	if !found {
		return undefined(data)
	}
	if cmd.Operands == 0 {
		return cmd.Name, 1
	}

	length := 2 + cmd.Operands*isa.WordSize
	if len(data) < length {
		return undefined(data)
	}
	mode := data[1]
	op1 := binary.LittleEndian.Uint32(data[op1Pos:])

	if cmd.Operands == 1 {
		switch mode {
		case isa.ModeRegister:
			return cmd.Name + " " + register(op1), length
		case isa.ModeMemory:
			return fmt.Sprintf("%s %d", cmd.Name, op1), length
		case isa.ModeImmediate:
			return fmt.Sprintf("%s $%d", cmd.Name, op1), length
		}
		return undefined(data)
	}

	op2 := binary.LittleEndian.Uint32(data[op2Pos:])
	switch mode {
	case isa.ModeRegisterRegister:
		return fmt.Sprintf("%s %s %s", cmd.Name, register(op1), register(op2)), length
	case isa.ModeRegisterMemory:
		return fmt.Sprintf("%s %s %d", cmd.Name, register(op1), op2), length
	case isa.ModeMemoryRegister:
		return fmt.Sprintf("%s %d %s", cmd.Name, op1, register(op2)), length
	case isa.ModeImmediateRegister:
		return fmt.Sprintf("%s $%d %s", cmd.Name, op1, register(op2)), length
	case isa.ModeImmediateMemory:
		return fmt.Sprintf("%s $%d %d", cmd.Name, op1, op2), length
	}
	return undefined(data)
}
