// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"context"
	"sync"
)

// Mock is a test double for Manager.
//
// Configure the mock by setting function fields before use. A method
// whose function field is nil panics when called, which surfaces
// unconfigured paths immediately in tests.
//
//	mock := &process.Mock{
//	    RunFunc: func(ctx context.Context, name string, args ...string) (process.Result, error) {
//	        if name == "sudo" {
//	            return process.Result{}, nil
//	        }
//	        return process.Result{ExitCode: 1}, nil
//	    },
//	}
type Mock struct {
	// RunFunc is called when Run is invoked.
	RunFunc func(ctx context.Context, name string, args ...string) (Result, error)

	// RunWithInputFunc is called when RunWithInput is invoked.
	RunWithInputFunc func(ctx context.Context, input []byte, name string, args ...string) (Result, error)

	// RunAttachedFunc is called when RunAttached is invoked.
	RunAttachedFunc func(ctx context.Context, input []byte, name string, args ...string) (int, error)

	// LookPathFunc is called when LookPath is invoked.
	LookPathFunc func(name string) (string, error)

	// Calls records all method invocations for verification.
	Calls []Call

	mu sync.Mutex
}

// Call records a single method invocation.
type Call struct {
	Method string
	Name   string
	Args   []string
	Input  []byte
}

// Run delegates to RunFunc and records the call.
func (m *Mock) Run(ctx context.Context, name string, args ...string) (Result, error) {
	m.record(Call{Method: "Run", Name: name, Args: args})
	if m.RunFunc == nil {
		panic("process.Mock.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// RunWithInput delegates to RunWithInputFunc and records the call.
func (m *Mock) RunWithInput(ctx context.Context, input []byte, name string, args ...string) (Result, error) {
	m.record(Call{Method: "RunWithInput", Name: name, Args: args, Input: input})
	if m.RunWithInputFunc == nil {
		panic("process.Mock.RunWithInputFunc not set")
	}
	return m.RunWithInputFunc(ctx, input, name, args...)
}

// RunAttached delegates to RunAttachedFunc and records the call.
func (m *Mock) RunAttached(ctx context.Context, input []byte, name string, args ...string) (int, error) {
	m.record(Call{Method: "RunAttached", Name: name, Args: args, Input: input})
	if m.RunAttachedFunc == nil {
		panic("process.Mock.RunAttachedFunc not set")
	}
	return m.RunAttachedFunc(ctx, input, name, args...)
}

// LookPath delegates to LookPathFunc and records the call.
func (m *Mock) LookPath(name string) (string, error) {
	m.record(Call{Method: "LookPath", Name: name})
	if m.LookPathFunc == nil {
		panic("process.Mock.LookPathFunc not set")
	}
	return m.LookPathFunc(name)
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *Mock) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Call, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// CallsTo returns the recorded calls whose argv starts with the given
// command name, across all run methods. LookPath calls are excluded.
func (m *Mock) CallsTo(name string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Call
	for _, c := range m.Calls {
		if c.Method != "LookPath" && c.Name == name {
			result = append(result, c)
		}
	}
	return result
}

func (m *Mock) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// Compile-time interface compliance check.
var _ Manager = (*Mock)(nil)
