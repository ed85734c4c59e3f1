package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ErrScriptTimeout is returned when a script exceeds its time budget.
var ErrScriptTimeout = errors.New("script execution timeout exceeded")

// Console levels, ordered like a browser console-message event.
const (
	ConsoleDebug = iota
	ConsoleInfo
	ConsoleWarning
	ConsoleError
)

// ConsoleEntry is one console call made by a script.
type ConsoleEntry struct {
	Level   int
	Message string
}

// HostMessage is one ipcRenderer.sendToHost call made by a script.
type HostMessage struct {
	Channel string
	Args    []any
}

// Document is the page state visible to a script. HTML is the sanitized
// body markup.
type Document struct {
	URL   string
	Title string
	Text  string
	HTML  string
}

// ScriptResult holds the outcome of one execution.
type ScriptResult struct {
	Value    any
	Console  []ConsoleEntry
	Host     []HostMessage
	Focus    []bool
	Title    string
	Duration time.Duration
}

// Runtime is a goja VM stripped of host access. A runtime is bound to one
// surface and executes one script at a time.
type Runtime struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	timeout time.Duration
	console []ConsoleEntry
	host    []HostMessage
	focus   []bool
}

// NewRuntime creates a sandboxed runtime
func NewRuntime(timeout time.Duration) *Runtime {
	r := &Runtime{timeout: timeout}
	r.vm = r.newVM()
	return r
}

func (r *Runtime) newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.Set(name, goja.Undefined())
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)

	console := vm.NewObject()
	levels := map[string]int{
		"debug": ConsoleDebug,
		"log":   ConsoleInfo,
		"info":  ConsoleInfo,
		"warn":  ConsoleWarning,
		"error": ConsoleError,
	}
	for name, level := range levels {
		_ = console.Set(name, r.consoleFunc(level))
	}
	_ = vm.Set("console", console)

	ipc := vm.NewObject()
	_ = ipc.Set("sendToHost", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("sendToHost requires a channel"))
		}
		args := make([]any, 0, len(call.Arguments)-1)
		for _, arg := range call.Arguments[1:] {
			args = append(args, arg.Export())
		}
		r.host = append(r.host, HostMessage{Channel: call.Argument(0).String(), Args: args})
		return goja.Undefined()
	})
	_ = vm.Set("ipcRenderer", ipc)

	window := vm.NewObject()
	_ = window.Set("focus", r.focusFunc(true))
	_ = window.Set("blur", r.focusFunc(false))
	_ = vm.Set("window", window)
	return vm
}

func (r *Runtime) focusFunc(focus bool) func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value {
		r.focus = append(r.focus, focus)
		return goja.Undefined()
	}
}

func (r *Runtime) consoleFunc(level int) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.console = append(r.console, ConsoleEntry{Level: level, Message: strings.Join(parts, " ")})
		return goja.Undefined()
	}
}

// Execute runs script against doc. Changes the script makes to
// document.title are reported in the result, together with the messages
// and focus changes it sent to the host.
func (r *Runtime) Execute(ctx context.Context, script string, doc Document) (*ScriptResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, errors.New("runtime closed")
	}

	start := time.Now()
	r.console = nil
	r.host = nil
	r.focus = nil

	document := r.vm.NewObject()
	_ = document.Set("title", doc.Title)
	_ = document.Set("URL", doc.URL)
	body := r.vm.NewObject()
	_ = body.Set("textContent", doc.Text)
	_ = body.Set("innerHTML", doc.HTML)
	_ = document.Set("body", body)
	_ = r.vm.Set("document", document)
	location := r.vm.NewObject()
	_ = location.Set("href", doc.URL)
	_ = r.vm.Set("location", location)

	vm := r.vm
	vm.ClearInterrupt()
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt(ErrScriptTimeout)
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-finished:
		}
	}()

	val, err := vm.RunString(script)
	result := &ScriptResult{
		Console:  r.console,
		Host:     r.host,
		Focus:    r.focus,
		Title:    document.Get("title").String(),
		Duration: time.Since(start),
	}
	if err != nil {
		// A VM interrupted mid-run is replaced; its state is undefined.
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			r.vm = r.newVM()
			if cause, ok := interrupted.Value().(error); ok {
				return result, cause
			}
		}
		return result, fmt.Errorf("script error: %w", err)
	}
	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		result.Value = val.Export()
	}
	return result, nil
}

// Close releases the VM.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
}
