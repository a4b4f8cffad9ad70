// Package tools maps function names the model may call to typed handlers.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

var (
	ErrDuplicateTool    = errors.New("duplicate tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Definition describes a callable function to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Handler executes one tool.
type Handler interface {
	Definition() Definition
	// Call receives the raw JSON argument string produced by the model and
	// returns the text placed in the tool-result message.
	Call(ctx context.Context, arguments string) (string, error)
}

type funcHandler[A any] struct {
	def Definition
	fn  func(ctx context.Context, args A) (string, error)
}

// NewFunc adapts fn into a Handler. Arguments are decoded into A and the
// parameter schema is reflected from A's json and jsonschema tags.
func NewFunc[A any](name, description string, fn func(ctx context.Context, args A) (string, error)) Handler {
	return &funcHandler[A]{
		def: Definition{
			Name:        name,
			Description: description,
			Parameters:  reflectParameters[A](),
		},
		fn: fn,
	}
}

func (h *funcHandler[A]) Definition() Definition { return h.def }

func (h *funcHandler[A]) Call(ctx context.Context, arguments string) (string, error) {
	var args A
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("%w for %s: %v", ErrInvalidArguments, h.def.Name, err)
		}
	}
	return h.fn(ctx, args)
}

func reflectParameters[A any]() map[string]any {
	var v A
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object"}
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Expansion looks the root up by type name, so unnamed structs
		// are inlined instead.
		ExpandedStruct: t.Name() != "",
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(params, "$schema")
	delete(params, "$id")
	return params
}

// Registry holds registered tools by function name.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// New builds a registry from handlers. It panics on duplicate names, which
// is a programming error at wiring time; use Register for dynamic input.
func New(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(h Handler) error {
	name := h.Definition().Name
	if name == "" {
		return errors.New("tool name is required")
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	if r.handlers == nil {
		r.handlers = make(map[string]Handler)
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[name]
	return h, ok
}

// Definitions returns tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.handlers[name].Definition())
	}
	return defs
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
