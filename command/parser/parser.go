/*
 * MiniVM - Monitor command parser.
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
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/minivm/minivm/emu/cpu"
	"github.com/minivm/minivm/emu/memory"
)

// Machine bundles what the monitor commands operate on. Prompt asks the
// console for a missing argument; it may be nil when no console exists.
type Machine struct {
	CPU    *cpu.CPU
	Mem    *memory.Memory
	Out    io.Writer
	Prompt func(msg string) (string, error)
}

type cmd struct {
	name    string // Command name, matched exactly.
	help    string // One line for the help listing.
	process func(*cmdLine, *Machine) (bool, error)
}

type cmdLine struct {
	line string // Current command.
	pos  int    // Position in line.
}

var cmdList []cmd

func init() {
	cmdList = []cmd{
		{name: "dump", help: "Make a dump of memory", process: dump},
		{name: "read", help: "Read some portion of memory", process: read},
		{name: "write", help: "Write some value to memory", process: write},
		{name: "next", help: "Execute next CPU instruction", process: next},
		{name: "run", help: "Execute program in memory", process: run},
		{name: "quit", help: "Quit the shell", process: quit},
		{name: "help", help: "This menu", process: help},
	}
}

// ProcessCommand executes the command line given. It returns true when the
// monitor should exit. Command names match exactly, case sensitive.
func ProcessCommand(commandLine string, mach *Machine) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()
	if name == "" {
		return false, nil
	}

	for _, c := range cmdList {
		if c.name == name {
			return c.process(&line, mach)
		}
	}
	return false, errors.New("invalid command, use help: " + name)
}

// CompleteCmd returns the command names the given prefix could still
// become, for console line completion.
func CompleteCmd(commandLine string) []string {
	name := strings.TrimLeft(commandLine, " \t")
	var matches []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.name, name) {
			matches = append(matches, c.name)
		}
	}
	return matches
}

// Skip forward over line until none whitespace character found.
func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Collect the next whitespace separated word, empty at end of line.
func (line *cmdLine) getWord() string {
	line.skipSpace()
	start := line.pos
	for line.pos < len(line.line) && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	return line.line[start:line.pos]
}

// argument takes the next word from the line, or asks the console for it
// when the line has none left.
func (line *cmdLine) argument(mach *Machine, msg string) (string, error) {
	word := line.getWord()
	if word != "" {
		return word, nil
	}
	if mach.Prompt == nil {
		return "", errors.New("missing argument")
	}
	return mach.Prompt(msg)
}

// decimal reads a decimal argument.
func (line *cmdLine) decimal(mach *Machine, msg string) (uint32, error) {
	word, err := line.argument(mach, msg)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(word), 10, 32)
	if err != nil {
		return 0, errors.New("not a decimal number: " + word)
	}
	return uint32(value), nil
}

// hexadecimal reads a hex argument, with or without a 0x prefix.
func (line *cmdLine) hexadecimal(mach *Machine, msg string) (uint32, error) {
	word, err := line.argument(mach, msg)
	if err != nil {
		return 0, err
	}
	text := strings.TrimPrefix(strings.TrimSpace(word), "0x")
	value, err := strconv.ParseUint(text, 16, 32)
	if err != nil {
		return 0, errors.New("not a hex number: " + word)
	}
	return uint32(value), nil
}
