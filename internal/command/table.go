// Package command is the static command table between the chat adapter and
// the ledger services. Each command declares the capability it needs and
// the table checks it before dispatch.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type Capability int

const (
	Public Capability = iota
	Privileged
)

func (c Capability) String() string {
	if c == Privileged {
		return "privileged"
	}
	return "public"
}

// PrivilegeChecker is the role collaborator.
type PrivilegeChecker interface {
	IsPrivileged(ctx context.Context, userID int64) bool
}

// Request is one parsed command invocation.
type Request struct {
	Caller int64    `json:"-"`
	Name   string   `json:"name"`
	Args   []string `json:"args"`
}

// Reply carries the structured result of a command; the adapter renders it.
type Reply struct {
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

type HandlerFunc func(ctx context.Context, req Request) (any, error)

type Command struct {
	Name       string
	Usage      string
	Summary    string
	Capability Capability
	Handler    HandlerFunc
}

// Info describes a command for help listings.
type Info struct {
	Name       string `json:"name"`
	Usage      string `json:"usage"`
	Summary    string `json:"summary"`
	Privileged bool   `json:"privileged"`
}

type Table struct {
	cmds   map[string]Command
	priv   PrivilegeChecker
	logger *zap.SugaredLogger
}

const helpName = "help"

// NewTable builds the table once at startup. Names are case-insensitive and
// must be unique; "help" is built in.
func NewTable(priv PrivilegeChecker, logger *zap.SugaredLogger, cmds ...Command) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := &Table{cmds: make(map[string]Command, len(cmds)), priv: priv, logger: logger}
	for _, c := range cmds {
		name := strings.ToLower(c.Name)
		if name == "" || c.Handler == nil {
			return nil, fmt.Errorf("command %q: name and handler are required", c.Name)
		}
		if _, dup := t.cmds[name]; dup || name == helpName {
			return nil, fmt.Errorf("command %q registered twice", name)
		}
		c.Name = name
		t.cmds[name] = c
	}
	return t, nil
}

// Dispatch runs the named command after the capability check.
func (t *Table) Dispatch(ctx context.Context, req Request) (*Reply, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	privileged := t.priv != nil && t.priv.IsPrivileged(ctx, req.Caller)
	if name == helpName {
		return &Reply{Command: helpName, Data: t.Help(privileged)}, nil
	}

	c, ok := t.cmds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Name)
	}
	if c.Capability == Privileged && !privileged {
		t.logger.Debugw("command refused", "command", name, "caller", req.Caller)
		return nil, fmt.Errorf("%w: %s", ErrForbidden, name)
	}

	req.Name = name
	data, err := c.Handler(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Reply{Command: name, Data: data}, nil
}

// Help lists the commands visible to a caller: privileged ones only for
// privileged callers.
func (t *Table) Help(privileged bool) []Info {
	out := make([]Info, 0, len(t.cmds))
	for _, c := range t.cmds {
		if c.Capability == Privileged && !privileged {
			continue
		}
		out = append(out, Info{Name: c.Name, Usage: c.Usage, Summary: c.Summary, Privileged: c.Capability == Privileged})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	ErrUnknownCommand = errors.New("command not found")
	ErrForbidden      = errors.New("not enough permissions")
	ErrBadArgument    = errors.New("bad argument")
)

func badArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadArgument, fmt.Sprintf(format, args...))
}
