package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// LogEntry is a single log line written by a script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

const (
	maxLogEntries = 500

	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
	interruptGrace    = 200 * time.Millisecond
)

var errScriptTimeout = errors.New("script timed out")

// blockedGlobals are removed from every runtime before user code runs.
var blockedGlobals = []string{"require", "fetch", "XMLHttpRequest", "eval", "Function"}

// VM wraps a goja runtime with sandbox restrictions and the autoplay globals.
// The fields below mu are only touched from inside script callbacks, which
// run while mu is held.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	stopRequested bool
	sleepMs       int64

	logMu sync.Mutex
	logs  []LogEntry
}

// NewVM creates a sandboxed runtime.
func NewVM() *VM {
	vm := &VM{runtime: goja.New()}
	rt := vm.runtime

	rt.Set("log", vm.jsLog)
	console := rt.NewObject()
	_ = console.Set("log", vm.jsLog)
	rt.Set("console", console)

	// stop() ends autoplay after the current call returns.
	rt.Set("stop", func(goja.FunctionCall) goja.Value {
		vm.stopRequested = true
		return goja.Undefined()
	})
	// sleep(ms) delays the next play() call.
	rt.Set("sleep", func(call goja.FunctionCall) goja.Value {
		vm.sleepMs = call.Argument(0).ToInteger()
		return goja.Undefined()
	})

	rt.Set("LEFT", "left")
	rt.Set("RIGHT", "right")
	for _, name := range blockedGlobals {
		rt.Set(name, goja.Undefined())
	}
	return vm
}

func (vm *VM) jsLog(call goja.FunctionCall) goja.Value {
	var b strings.Builder
	for i, arg := range call.Arguments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(arg.String())
	}

	vm.logMu.Lock()
	if len(vm.logs) == maxLogEntries {
		copy(vm.logs, vm.logs[1:])
		vm.logs = vm.logs[:maxLogEntries-1]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: b.String()})
	vm.logMu.Unlock()
	return goja.Undefined()
}

// Execute runs the script source once so it can define play().
func (vm *VM) Execute(source string) error {
	return vm.guarded(scriptInitTimeout, func() error {
		if _, err := vm.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// HasPlay reports whether the script defined a play() function.
func (vm *VM) HasPlay() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := goja.AssertFunction(vm.runtime.Get("play"))
	return ok
}

// CallPlay publishes view to the script and calls play().
func (vm *VM) CallPlay(view View) (goja.Value, error) {
	var action goja.Value
	err := vm.guarded(scriptCallTimeout, func() error {
		injectView(vm.runtime, view)
		play, ok := goja.AssertFunction(vm.runtime.Get("play"))
		if !ok {
			return errors.New("play is not a function")
		}
		v, err := play(goja.Undefined())
		if err != nil {
			return fmt.Errorf("play() error: %w", err)
		}
		action = v
		return nil
	})
	return action, err
}

// IsStopRequested reports whether the script called stop().
func (vm *VM) IsStopRequested() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stopRequested
}

// TakeSleep returns the delay requested by sleep() and clears it.
func (vm *VM) TakeSleep() time.Duration {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	d := time.Duration(vm.sleepMs) * time.Millisecond
	vm.sleepMs = 0
	return d
}

// GetLogs returns a copy of the log buffer.
func (vm *VM) GetLogs() []LogEntry {
	vm.logMu.Lock()
	defer vm.logMu.Unlock()
	return append([]LogEntry(nil), vm.logs...)
}

// guarded runs fn under mu on its own goroutine and interrupts the runtime
// when it exceeds limit.
func (vm *VM) guarded(limit time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		done <- fn()
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	}

	vm.runtime.Interrupt(errScriptTimeout.Error())
	select {
	case err := <-done:
		vm.runtime.ClearInterrupt()
		if err != nil {
			return fmt.Errorf("%w: %w", errScriptTimeout, err)
		}
		return errScriptTimeout
	case <-time.After(interruptGrace):
		return errScriptTimeout
	}
}
