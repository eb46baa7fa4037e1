/*
 * MiniVM - Monitor commands.
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

package parser

import (
	"fmt"

	"github.com/minivm/minivm/emu/disassemble"
)

// nextDumpWords is how much memory the next command shows after a step.
const nextDumpWords = 40

// dump shows a memory region and the CPU state.
func dump(line *cmdLine, mach *Machine) (bool, error) {
	addr, err := line.decimal(mach, "Enter address (dec): ")
	if err != nil {
		return false, err
	}
	size, err := line.decimal(mach, "Enter size (dec): ")
	if err != nil {
		return false, err
	}
	if err := mach.Mem.Dump(mach.Out, addr, size); err != nil {
		return false, err
	}
	mach.CPU.DumpState(mach.Out)
	return false, nil
}

// read shows the word stored at an address.
func read(line *cmdLine, mach *Machine) (bool, error) {
	addr, err := line.decimal(mach, "Enter address (dec): ")
	if err != nil {
		return false, err
	}
	value, err := mach.Mem.GetWord(addr)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(mach.Out, "Memory value at 0x%08x: 0x%08x\n", addr, value)
	return false, nil
}

// write stores a value at an address.
func write(line *cmdLine, mach *Machine) (bool, error) {
	addr, err := line.decimal(mach, "Enter address (dec): ")
	if err != nil {
		return false, err
	}
	value, err := line.hexadecimal(mach, "Enter value (hex): ")
	if err != nil {
		return false, err
	}
	if err := mach.Mem.PutWord(addr, value); err != nil {
		return false, err
	}
	fmt.Fprintf(mach.Out, "0x%08x ---> [0x%08x]\n", value, addr)
	return false, nil
}

// next executes a single instruction and shows the machine state.
func next(_ *cmdLine, mach *Machine) (bool, error) {
	inst, _ := disassemble.Disassemble(mach.CPU.ReadBytes(mach.CPU.IP(), disassemble.MaxLen))
	if inst == "" {
		inst = "??"
	}
	fmt.Fprintf(mach.Out, "Executing CPU command at [0x%08x]: %s ...", mach.CPU.IP(), inst)
	if err := mach.CPU.Step(); err != nil {
		fmt.Fprintln(mach.Out, "ERROR:", err)
	} else {
		fmt.Fprintln(mach.Out, "OK")
	}
	if err := mach.Mem.Dump(mach.Out, 0, nextDumpWords); err != nil {
		return false, err
	}
	mach.CPU.DumpState(mach.Out)
	return false, nil
}

// run executes until halt or the first failing step.
func run(_ *cmdLine, mach *Machine) (bool, error) {
	fmt.Fprintf(mach.Out, "Running CPU at [0x%08x]...\n", mach.CPU.IP())
	if err := mach.CPU.Run(); err != nil {
		fmt.Fprintf(mach.Out, "ERROR at [0x%08x]: %v\n", mach.CPU.IP(), err)
		return false, nil
	}
	fmt.Fprintln(mach.Out, "DONE")
	fmt.Fprintf(mach.Out, "IP: [0x%08x]\n", mach.CPU.IP())
	return false, nil
}

func quit(_ *cmdLine, mach *Machine) (bool, error) {
	fmt.Fprintln(mach.Out, "Bye.")
	return true, nil
}

func help(_ *cmdLine, mach *Machine) (bool, error) {
	fmt.Fprintln(mach.Out, "Available commands:")
	for _, c := range cmdList {
		fmt.Fprintf(mach.Out, "\t%s - %s\n", c.name, c.help)
	}
	return false, nil
}
