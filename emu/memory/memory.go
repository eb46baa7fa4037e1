/*
 * MiniVM - Word granular memory.
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

package memory

import (
	"errors"
	"fmt"
	"io"

	"github.com/minivm/minivm/emu/isa"
)

// MemSize is the store capacity in words.
const MemSize = 1024

// Word access failures. Diagnostics carry the offending byte address.
var (
	ErrRange = errors.New("address out of range")
	ErrAlign = errors.New("address not word aligned")
)

// Memory is a linear word granular store, addressed in bytes. The word
// slice never changes length after construction. Unaligned access is not
// handled here; the CPU builds its byte view on top of aligned words.
type Memory struct {
	words []uint32
}

// NewMemory returns a zeroed store of MemSize words.
func NewMemory() *Memory {
	return &Memory{words: make([]uint32, MemSize)}
}

// Size returns the store capacity in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.words)) * isa.WordSize
}

func (m *Memory) check(addr uint32) error {
	if addr >= m.Size() {
		return fmt.Errorf("%w: 0x%08x", ErrRange, addr)
	}
	if addr%isa.WordSize != 0 {
		return fmt.Errorf("%w: 0x%08x", ErrAlign, addr)
	}
	return nil
}

// GetWord reads the word at a word aligned byte address.
func (m *Memory) GetWord(addr uint32) (uint32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m.words[addr/isa.WordSize], nil
}

// PutWord stores a word at a word aligned byte address.
func (m *Memory) PutWord(addr uint32, word uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.words[addr/isa.WordSize] = word
	return nil
}

// Dump writes size words starting at the word aligned byte address addr,
// one word per line as little endian byte groups. Memory is not modified.
func (m *Memory) Dump(w io.Writer, addr uint32, size uint32) error {
	if err := m.check(addr); err != nil {
		return err
	}
	fmt.Fprintln(w, "---------------- Memory ----------------")
	for i := uint32(0); i < size; i++ {
		a := addr + i*isa.WordSize
		word, err := m.GetWord(a)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[0x%08x]: ", a)
		for j := 0; j < isa.WordSize; j++ {
			fmt.Fprintf(w, "%02x ", uint8(word>>(8*j)))
		}
		fmt.Fprintln(w)
	}
	return nil
}
