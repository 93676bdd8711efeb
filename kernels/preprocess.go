// Copyright 2023 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package kernels

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"honnef.co/go/dsgpu"
)

// Preprocessor expands the directives kernels use on top of WGSL:
//
//	#import name           splice in shared/name.wgsl
//	#ifdef X / #ifndef X   conditional sections, closed by #endif
//	#else
//	#enable extension      emitted as an enable directive
//
// Module-scope lines starting with "let " are rewritten to "const ".
type Preprocessor struct {
	Imports fs.FS
	Defines map[string]struct{}

	imports map[string][]byte
}

func (p *Preprocessor) debugf(f string, v ...any) {
	log := dsgpu.Logger()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	log.Debug(fmt.Sprintf(f, v...))
}

func (p *Preprocessor) getImport(name string) ([]byte, error) {
	if src, ok := p.imports[name]; ok {
		return src, nil
	}
	if p.Imports == nil {
		return nil, fmt.Errorf("no import source configured")
	}
	p.debugf("loading import %q", name)
	src, err := fs.ReadFile(p.Imports, name+".wgsl")
	if err != nil {
		return nil, err
	}
	if p.imports == nil {
		p.imports = make(map[string][]byte)
	}
	p.imports[name] = src
	return src, nil
}

type branch struct {
	active     bool
	elsePassed bool
}

func allActive(stack []branch) bool {
	for _, item := range stack {
		if !item.active {
			return false
		}
	}
	return true
}

func (p *Preprocessor) Preprocess(source []byte, name string) ([]byte, error) {
	var out []byte
	nl := []byte("\n")
	space := []byte(" ")
	dirMarker := []byte("#")
	commentMarker := []byte("//")
	let := []byte("let ")
	var stack []branch
	lineNo := 0
	errorf := func(f string, v ...any) error {
		v = append(v[:len(v):len(v)], name, lineNo)
		return fmt.Errorf(f+" (at %s:%d)", v...)
	}

allLines:
	for len(source) > 0 {
		lineNo++
		var line []byte
		line, source, _ = bytes.Cut(source, nl)

		for len(line) > 0 {
			hashIdx := bytes.IndexByte(line, '#')
			commentIdx := bytes.Index(line, commentMarker)
			if hashIdx == -1 || (commentIdx != -1 && commentIdx < hashIdx) {
				break
			}

			end := bytes.IndexByte(line[hashIdx+1:], ' ')
			if end == -1 {
				end = len(line)
			} else {
				end += hashIdx + 1
			}
			directive := string(line[hashIdx+1 : end])
			atStart := bytes.HasPrefix(bytes.TrimSpace(line), dirMarker)
			arg := bytes.TrimSpace(line[end:])

			switch directive {
			case "ifdef", "ifndef", "else", "endif", "enable":
				if !atStart {
					return nil, errorf("%q directives must be the first non-whitespace item on their line", directive)
				}
			}

			switch directive {
			case "ifdef", "ifndef":
				_, exists := p.Defines[string(arg)]
				active := (directive == "ifdef") == exists
				stack = append(stack, branch{active: active})
				p.debugf("%s %s: active=%t", directive, arg, active)
				continue allLines

			case "else":
				if len(stack) == 0 {
					return nil, errorf("#else without #ifdef or #ifndef")
				}
				if len(arg) != 0 {
					return nil, errorf("#else directive doesn't accept arguments")
				}
				item := &stack[len(stack)-1]
				if item.elsePassed {
					return nil, errorf("second else for same ifdef/ifndef")
				}
				item.elsePassed = true
				item.active = !item.active
				continue allLines

			case "endif":
				if len(stack) == 0 {
					return nil, errorf("mismatched endif")
				}
				stack = stack[:len(stack)-1]
				if len(arg) != 0 && !bytes.HasPrefix(arg, commentMarker) {
					return nil, errorf("#endif directive doesn't accept arguments")
				}
				continue allLines

			case "import":
				if len(arg) == 0 {
					return nil, errorf("#import needs an argument")
				}
				active := allActive(stack)
				if active {
					out = append(out, line[:hashIdx]...)
				}
				var importName []byte
				importName, line, _ = bytes.Cut(arg, space)
				if !active {
					continue
				}
				importSrc, err := p.getImport(string(importName))
				if err != nil {
					return nil, errorf("couldn't import %q: %w", importName, err)
				}
				imported, err := p.Preprocess(importSrc, "#import "+string(importName))
				if err != nil {
					return nil, err
				}
				out = append(out, imported...)

			case "enable":
				if allActive(stack) {
					out = append(out, "//__"...)
					out = append(out, line...)
					out = append(out, '\n')
				}
				continue allLines

			default:
				return nil, errorf("unknown preprocessor directive %q", directive)
			}
		}

		if allActive(stack) {
			if bytes.HasPrefix(line, let) {
				out = append(out, "const"...)
				out = append(out, line[3:]...)
			} else {
				out = append(out, line...)
			}
			out = append(out, '\n')
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%s: %d unterminated #ifdef/#ifndef", name, len(stack))
	}
	return out, nil
}

// Postprocess turns the markers left by #enable into enable directives.
func Postprocess(src []byte) []byte {
	return bytes.ReplaceAll(src, []byte("//__#enable"), []byte("enable"))
}
