/*
 * MiniVM - Two pass assembler.
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

// Package assembler translates mnemonic source into a flat binary image.
//
// Source is a free form stream of whitespace separated tokens: labels,
// byte/word data definitions, commands and their operands. Instructions
// are encoded as opcode(1) mode(1) op1(4) [op2(4)], little endian, except
// halt which is the opcode byte alone. Label references are patched in a
// second pass once all labels are bound.
package assembler

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/minivm/minivm/emu/isa"
)

// Assembly failures.
var (
	ErrParse      = errors.New("assembly error")
	ErrEncode     = errors.New("incompatible operands")
	ErrUnresolved = errors.New("unresolved symbol")
)

// Parser states.
type state int

const (
	stStart state = iota
	stCommandOrDefinition
	stDefinition
	stOperand
)

// Operand families.
type operandType int

const (
	opRegister operandType = iota
	opMemory
	opImmediate
)

// A fixup is a label use whose target offset was unknown when the operand
// was emitted. The placeholder word at offset is patched in the second pass.
type fixup struct {
	symbol string // Label name, without any leading $.
	offset uint32 // Byte position of the placeholder word in the image.
}

// An assembler holds the tables for a single assemble call. It is built,
// used and dropped per assembly; nothing survives between calls.
type assembler struct {
	image      []byte
	offset     uint32
	labels     map[string]uint32
	unresolved []fixup

	state      state
	cmd        isa.Command
	defSize    uint32
	operandIdx int
	remaining  int
	fstOperand uint32
	fstType    operandType
	sndOperand uint32
	sndType    operandType
}

// Assemble translates the token stream into a binary image. The whole
// translation fails on the first parse or encoding error and on any label
// that is still unresolved after the source is exhausted; no partial image
// is returned.
func Assemble(r io.Reader) ([]byte, error) {
	a := &assembler{
		labels: make(map[string]uint32),
		state:  stStart,
	}

	scan := bufio.NewScanner(r)
	scan.Split(bufio.ScanWords)
	for scan.Scan() {
		if err := a.symbol(scan.Text()); err != nil {
			return nil, err
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if a.state == stDefinition || a.state == stOperand {
		return nil, fmt.Errorf("%w: unexpected end of source", ErrParse)
	}

	if err := a.resolve(); err != nil {
		return nil, err
	}
	return a.image, nil
}

// AssembleFile assembles the named source file.
func AssembleFile(name string) ([]byte, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Assemble(file)
}

// Token classifiers.

func isDecimal(sym string) bool {
	if sym == "" {
		return false
	}
	for _, by := range sym {
		if by < '0' || by > '9' {
			return false
		}
	}
	return true
}

func isHexadecimal(sym string) bool {
	if !strings.HasPrefix(sym, "0x") || len(sym) == 2 {
		return false
	}
	for _, by := range sym[2:] {
		if (by < '0' || by > '9') && (by < 'a' || by > 'f') {
			return false
		}
	}
	return true
}

func isNumber(sym string) bool {
	return isDecimal(sym) || isHexadecimal(sym)
}

func isRegister(sym string) bool {
	if len(sym) < 2 || sym[0] != 'g' || !isDecimal(sym[1:]) {
		return false
	}
	n, err := strconv.Atoi(sym[1:])
	return err == nil && n < isa.NrGeneral
}

func isLabel(sym string) bool {
	if sym == "" {
		return false
	}
	by := sym[0]
	alpha := (by >= 'a' && by <= 'z') || (by >= 'A' && by <= 'Z')
	return alpha && !isRegister(sym) && !isa.IsCommand(sym)
}

func isMemory(sym string) bool {
	return isNumber(sym)
}

func isImmediate(sym string) bool {
	return strings.HasPrefix(sym, "$") && isNumber(sym[1:])
}

func isImmLabel(sym string) bool {
	return strings.HasPrefix(sym, "$") && isLabel(sym[1:])
}

func isOperand(sym string) bool {
	return isRegister(sym) || isMemory(sym) || isImmediate(sym) ||
		isLabel(sym) || isImmLabel(sym)
}

func isDefinition(sym string) bool {
	return sym == "byte" || sym == "word"
}

// symToNumber converts a decimal or 0x hexadecimal token.
func symToNumber(sym string) (uint32, error) {
	if isDecimal(sym) {
		v, err := strconv.ParseUint(sym, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	if isHexadecimal(sym) {
		v, err := strconv.ParseUint(sym[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return uint32(v), nil
	}
	return 0, fmt.Errorf("not a number: [%s]", sym)
}

// registerCode maps gN to its encoding code.
func registerCode(sym string) uint32 {
	n, _ := strconv.Atoi(sym[1:])
	return isa.GeneralCode(uint32(n))
}

func definitionSize(sym string) uint32 {
	if sym == "byte" {
		return 1
	}
	return isa.WordSize
}

// Emit helpers.

func (a *assembler) emitByte(by uint8) {
	a.image = append(a.image, by)
	a.offset++
}

func (a *assembler) emitWord(w uint32) {
	var buf [isa.WordSize]byte
	binary.LittleEndian.PutUint32(buf[:], w)
	a.image = append(a.image, buf[:]...)
	a.offset += isa.WordSize
}

// command starts an instruction: emit the opcode and decide whether
// operands follow.
func (a *assembler) command(sym string) {
	a.cmd, _ = isa.Lookup(sym)
	a.emitByte(a.cmd.Opcode)
	a.operandIdx = 0
	a.remaining = a.cmd.Operands
	if a.remaining > 0 {
		a.state = stOperand
	} else {
		a.state = stStart
	}
}

// symbol feeds one token to the state machine.
func (a *assembler) symbol(sym string) error {
	switch a.state {
	case stStart, stCommandOrDefinition:
		if a.state == stCommandOrDefinition && isDefinition(sym) {
			a.defSize = definitionSize(sym)
			a.state = stDefinition
			return nil
		}
		if isa.IsCommand(sym) {
			a.command(sym)
			return nil
		}
		if a.state == stStart && isLabel(sym) {
			name := strings.TrimSuffix(sym, ":")
			if _, ok := a.labels[name]; ok {
				return fmt.Errorf("%w at: [%s]: duplicate label", ErrParse, sym)
			}
			a.labels[name] = a.offset
			a.state = stCommandOrDefinition
			return nil
		}
		return fmt.Errorf("%w at: [%s]", ErrParse, sym)

	case stDefinition:
		if !isNumber(sym) {
			return fmt.Errorf("%w at: [%s]: not a number", ErrParse, sym)
		}
		number, err := symToNumber(sym)
		if err != nil {
			return fmt.Errorf("%w at: [%s]: %v", ErrParse, sym, err)
		}
		for i := uint32(0); i < a.defSize; i++ {
			a.emitByte(uint8(number >> (8 * i)))
		}
		a.state = stStart
		return nil

	case stOperand:
		return a.operand(sym)
	}
	return fmt.Errorf("%w at: [%s]", ErrParse, sym)
}

// operand consumes the next expected operand. The first operand may be a
// register, a memory reference or an immediate; the second may not be an
// immediate. Label operands emit a zero placeholder and defer to fixup.
func (a *assembler) operand(sym string) error {
	if !isOperand(sym) {
		return fmt.Errorf("%w at: [%s]", ErrParse, sym)
	}

	// The placeholder for operand k lands after the mode byte and any
	// earlier operand words.
	patch := a.offset + 1 + uint32(a.operandIdx)*isa.WordSize

	var value uint32
	var typ operandType
	var err error
	switch {
	case isRegister(sym):
		value = registerCode(sym)
		typ = opRegister
	case isMemory(sym):
		value, err = symToNumber(sym)
		typ = opMemory
	case isLabel(sym):
		a.unresolved = append(a.unresolved, fixup{symbol: sym, offset: patch})
		// A label target of a one operand branch is the label's offset
		// itself, not a word to read it from. Labels in two operand
		// instructions stay memory references. Numeric branch targets
		// keep the indirect memory form.
		if a.cmd.Operands == 1 {
			typ = opImmediate
		} else {
			typ = opMemory
		}
	case isImmediate(sym):
		if a.operandIdx == 1 {
			return fmt.Errorf("%w at: [%s]: second operand can't be immediate value", ErrEncode, sym)
		}
		value, err = symToNumber(sym[1:])
		typ = opImmediate
	case isImmLabel(sym):
		if a.operandIdx == 1 {
			return fmt.Errorf("%w at: [%s]: second operand can't be immediate value", ErrEncode, sym)
		}
		a.unresolved = append(a.unresolved, fixup{symbol: sym[1:], offset: patch})
		typ = opImmediate
	}
	if err != nil {
		return fmt.Errorf("%w at: [%s]: %v", ErrParse, sym, err)
	}

	if a.operandIdx == 0 {
		a.fstOperand, a.fstType = value, typ
	} else {
		a.sndOperand, a.sndType = value, typ
	}
	a.operandIdx++
	a.remaining--
	if a.remaining > 0 {
		return nil
	}
	return a.encode(sym)
}

// encode computes the addressing mode from the collected operand types and
// emits mode and operand words.
func (a *assembler) encode(sym string) error {
	var mode uint8
	if a.operandIdx == 1 {
		switch a.fstType {
		case opRegister:
			mode = isa.ModeRegister
		case opMemory:
			mode = isa.ModeMemory
		case opImmediate:
			mode = isa.ModeImmediate
		}
		a.emitByte(mode)
		a.emitWord(a.fstOperand)
	} else {
		if a.fstType == opMemory && a.sndType == opMemory {
			return fmt.Errorf("%w at: [%s]: memory-memory", ErrEncode, sym)
		}
		switch {
		case a.fstType == opRegister && a.sndType == opRegister:
			mode = isa.ModeRegisterRegister
		case a.fstType == opRegister && a.sndType == opMemory:
			mode = isa.ModeRegisterMemory
		case a.fstType == opMemory && a.sndType == opRegister:
			mode = isa.ModeMemoryRegister
		case a.fstType == opImmediate && a.sndType == opRegister:
			mode = isa.ModeImmediateRegister
		case a.fstType == opImmediate && a.sndType == opMemory:
			mode = isa.ModeImmediateMemory
		}
		a.emitByte(mode)
		a.emitWord(a.fstOperand)
		a.emitWord(a.sndOperand)
	}
	a.state = stStart
	return nil
}

// resolve is the fixup pass: patch every deferred label use with the
// label's byte offset.
func (a *assembler) resolve() error {
	for _, fix := range a.unresolved {
		addr, ok := a.labels[fix.symbol]
		if !ok {
			return fmt.Errorf("%w: [%s]", ErrUnresolved, fix.symbol)
		}
		binary.LittleEndian.PutUint32(a.image[fix.offset:], addr)
	}
	return nil
}
