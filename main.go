/*
 * MiniVM - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/minivm/minivm/command/parser"
	"github.com/minivm/minivm/command/reader"
	"github.com/minivm/minivm/emu/assembler"
	"github.com/minivm/minivm/emu/cpu"
	"github.com/minivm/minivm/emu/iodev"
	"github.com/minivm/minivm/emu/memory"
	logger "github.com/minivm/minivm/util/logger"
)

func main() {
	optProgram := getopt.StringLong("program", 'p', "code.text", "Assembler source file")
	optAddr := getopt.Uint32Long("addr", 'a', 0, "Load address")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optBatch := getopt.BoolLong("batch", 'b', "Run to halt and exit, no monitor")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug records to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Unable to create log file:", err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	slog.SetDefault(slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug)))

	code, err := assembler.AssembleFile(*optProgram)
	if err != nil {
		slog.Error("assembly failed", "file", *optProgram, "error", err.Error())
		os.Exit(1)
	}
	slog.Debug("assembled", "file", *optProgram, "bytes", len(code))

	mem := memory.NewMemory()
	machine, err := cpu.New(mem, iodev.Null{})
	if err != nil {
		slog.Error("unable to initialize CPU", "error", err.Error())
		os.Exit(1)
	}

	if err := machine.LoadCode(*optAddr, code); err != nil {
		slog.Error("unable to load code", "error", err.Error())
		os.Exit(1)
	}

	if *optBatch {
		if err := machine.Run(); err != nil {
			slog.Error("run failed", "ip", fmt.Sprintf("0x%08x", machine.IP()), "error", err.Error())
			os.Exit(1)
		}
		machine.DumpState(os.Stdout)
		return
	}

	fmt.Println("+------------------------------+")
	fmt.Println("| Welcome to the MiniVM shell! |")
	fmt.Println("+------------------------------+")

	reader.ConsoleReader(&parser.Machine{CPU: machine, Mem: mem, Out: os.Stdout})
}
