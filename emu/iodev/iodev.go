/*
 * MiniVM - I/O device contract.
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

package iodev

import "errors"

// ErrEmpty is returned for transfers with no buffer space.
var ErrEmpty = errors.New("empty transfer buffer")

// Device is the I/O facility the CPU is constructed with. Transfers cover
// the whole buffer; an empty buffer is an error.
type Device interface {
	Read(p []byte) error
	Write(p []byte) error
}

// Null is a device that accepts every non-empty transfer and moves no data.
type Null struct{}

func (Null) Read(p []byte) error {
	if len(p) == 0 {
		return ErrEmpty
	}
	return nil
}

func (Null) Write(p []byte) error {
	if len(p) == 0 {
		return ErrEmpty
	}
	return nil
}
