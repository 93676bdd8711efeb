// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package profiler records trees of CPU timing spans. A nil *Group is a
// valid no-op profiler.
package profiler

import (
	"time"
)

type Group struct {
	Label    string
	cpuStart time.Time
	cpuEnd   time.Time
	children []*Group
}

// Start starts a new top-level group.
func Start(label string) *Group {
	return &Group{
		Label:    label,
		cpuStart: time.Now(),
	}
}

// Nest starts a child group. Children may be nested arbitrarily.
func (g *Group) Nest(label string) *Group {
	if g == nil {
		return nil
	}
	if !g.cpuEnd.IsZero() {
		panic("trying to nest in a group that has ended")
	}
	cg := &Group{
		Label:    label,
		cpuStart: time.Now(),
	}
	g.children = append(g.children, cg)
	return cg
}

func (g *Group) End() {
	if g == nil {
		return
	}
	if !g.cpuEnd.IsZero() {
		panic("trying to end same group twice")
	}
	g.cpuEnd = time.Now()
}

type Result struct {
	Label    string
	CPUStart time.Time
	CPUEnd   time.Time
	Children []Result
}

// Result returns the recorded timings of g and its descendants. Groups that
// haven't ended yet have a zero CPUEnd.
func (g *Group) Result() Result {
	if g == nil {
		return Result{}
	}
	res := Result{
		Label:    g.Label,
		CPUStart: g.cpuStart,
		CPUEnd:   g.cpuEnd,
	}
	if len(g.children) > 0 {
		res.Children = make([]Result, len(g.children))
		for i, c := range g.children {
			res.Children[i] = c.Result()
		}
	}
	return res
}

// Duration returns the span's wall time, or zero if it hasn't ended.
func (r Result) Duration() time.Duration {
	if r.CPUEnd.IsZero() {
		return 0
	}
	return r.CPUEnd.Sub(r.CPUStart)
}

// Find returns the first span with the given label, searching depth-first.
func (r Result) Find(label string) (Result, bool) {
	if r.Label == label {
		return r, true
	}
	for _, c := range r.Children {
		if found, ok := c.Find(label); ok {
			return found, true
		}
	}
	return Result{}, false
}

// Walk calls fn for r and its descendants in depth-first order.
func (r Result) Walk(fn func(depth int, r Result)) {
	var walk func(depth int, r Result)
	walk = func(depth int, r Result) {
		fn(depth, r)
		for _, c := range r.Children {
			walk(depth+1, c)
		}
	}
	walk(0, r)
}
