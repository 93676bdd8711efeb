// Copyright 2023 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command check-kernels preprocesses every WGSL kernel in the catalogue,
// validates it with naga and writes the results.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
	"honnef.co/go/dsgpu"
	"honnef.co/go/dsgpu/kernels"
)

func main() {
	var (
		in      string
		out     string
		spirv   bool
		verbose bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-v] [-in <dir>] -out <dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&in, "in", "", "Read kernel sources from `directory` instead of the built-in ones")
	flag.StringVar(&out, "out", "./out", "Path to output `directory`")
	flag.BoolVar(&spirv, "spirv", true, "Write SPIR-V next to the preprocessed WGSL")
	flag.BoolVar(&verbose, "v", false, "Be verbose")
	flag.Parse()

	if len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}

	if verbose {
		dsgpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	write := func(src []byte, name string) error {
		return os.WriteFile(filepath.Join(out, name), src, 0666)
	}

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	var root fs.FS
	if in != "" {
		root = os.DirFS(in)
	}

	if err := os.MkdirAll(out, 0777); err != nil {
		dief("Couldn't create output directory: %s", err)
	}

	failed := false
	for i, k := range kernels.All() {
		if !k.HasWGSL() {
			continue
		}
		if verbose {
			if i != 0 {
				fmt.Fprintln(os.Stderr)
			}
			fmt.Fprintf(os.Stderr, "compiling %s from %s with defines %v\n", k.Name, k.Source, k.Defines)
		}

		var src []byte
		var err error
		if root != nil {
			src, err = k.WGSLFrom(root)
		} else {
			src, err = k.WGSL()
		}
		if err != nil {
			dief("Couldn't preprocess %s: %s", k.Name, err)
		}
		if err := write(src, k.Name+".wgsl"); err != nil {
			dief("Couldn't write %s: %s", k.Name, err)
		}

		bin, err := naga.Compile(string(src))
		if err != nil {
			msg := err.Error()
			if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
				fmt.Fprintf(os.Stderr, "%s: skipping validation: %s\n", k.Name, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", k.Name, err)
			failed = true
			continue
		}
		if spirv {
			if err := write(bin, k.Name+".spv"); err != nil {
				dief("Couldn't write %s: %s", k.Name, err)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}
