// Package command implements dispatch for inbound chat-platform commands:
// a mapping from command name to handler capability, looked up by exact
// name. The transport layer (webhook handler) parses the payload and hands
// the invocation here; handlers return a transport-agnostic result that the
// caller renders.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownCommand is returned by Dispatch when no handler is
	// registered under the given name.
	ErrUnknownCommand = errors.New("command: unknown command")
)

// Invocation carries the parsed arguments of one inbound command.
type Invocation struct {
	// DiscordID is the account invoking the command.
	DiscordID int64
}

// HandlerFunc executes one command and returns its result payload.
// Errors propagate unchanged so the transport can map service sentinels.
type HandlerFunc func(ctx context.Context, inv Invocation) (any, error)

// Spec describes a registrable command.
type Spec struct {
	// Name is the exact lookup key (e.g. "link").
	Name string
	// Description is surfaced to command-listing clients.
	Description string
	// Handle executes the command.
	Handle HandlerFunc
}

// Dispatcher routes invocations to registered commands. Registration
// happens during startup; Dispatch is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]Spec
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]Spec)}
}

// Register adds a command. Registering an empty name, a nil handler, or a
// name that is already taken is a programming error and fails loudly.
func (d *Dispatcher) Register(spec Spec) error {
	if spec.Name == "" || spec.Handle == nil {
		return fmt.Errorf("command: invalid spec %q", spec.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commands[spec.Name]; ok {
		return fmt.Errorf("command: %q already registered", spec.Name)
	}
	d.commands[spec.Name] = spec
	return nil
}

// Dispatch looks up the handler registered under name (exact match) and
// invokes it. Unknown names yield ErrUnknownCommand.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, inv Invocation) (any, error) {
	d.mu.RLock()
	spec, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownCommand
	}
	return spec.Handle(ctx, inv)
}

// Names returns the registered command names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.commands))
	for name := range d.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
