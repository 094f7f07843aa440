package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-server-sentry/pkg/tools/utils"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Param is one named field of a tool's parameter contract.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
	Enum        []string
	Default     string
}

// HandlerFunc runs a validated call and returns the rendered report.
type HandlerFunc func(ctx context.Context, call Call) (string, error)

// ToolDefinition is the static contract of one tool.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []Param
	ReadOnly    bool
	Handler     HandlerFunc
}

// Validate checks args against the contract and returns the arguments the
// handler will see, with declared defaults filled in. Unknown arguments are
// dropped.
func (def *ToolDefinition) Validate(args map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(def.Params))

	for _, param := range def.Params {
		var (
			value any
			err   error
		)

		present := args[param.Name] != nil

		switch param.Type {
		case ParamNumber:
			var f float64
			if f, err = utils.GetFloat64Param(args, param.Name, param.Required); present {
				value = f
			}
		case ParamBoolean:
			var b bool
			if b, err = utils.GetBoolParam(args, param.Name, param.Required); present {
				value = b
			}
		default:
			var str string
			str, err = utils.GetStringParam(args, param.Name, param.Required)
			if err == nil && str == "" && param.Default != "" {
				str = param.Default
			}
			if err == nil && str != "" {
				if len(param.Enum) > 0 && !slices.Contains(param.Enum, str) {
					err = fmt.Errorf("parameter '%s' must be one of %v, got %q", param.Name, param.Enum, str)
				}
				value = str
			}
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}

		if value != nil {
			validated[param.Name] = value
		}
	}

	return validated, nil
}

// MCPTool converts the definition into the tool advertised over MCP.
func (def *ToolDefinition) MCPTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(def.Description),
		mcp.WithReadOnlyHintAnnotation(def.ReadOnly),
		mcp.WithDestructiveHintAnnotation(false),
	}

	for _, param := range def.Params {
		propertyOpts := []mcp.PropertyOption{mcp.Description(param.Description)}
		if param.Required {
			propertyOpts = append(propertyOpts, mcp.Required())
		}

		switch param.Type {
		case ParamNumber:
			opts = append(opts, mcp.WithNumber(param.Name, propertyOpts...))
		case ParamBoolean:
			opts = append(opts, mcp.WithBoolean(param.Name, propertyOpts...))
		default:
			if len(param.Enum) > 0 {
				propertyOpts = append(propertyOpts, mcp.Enum(param.Enum...))
			}
			if param.Default != "" {
				propertyOpts = append(propertyOpts, mcp.DefaultString(param.Default))
			}
			opts = append(opts, mcp.WithString(param.Name, propertyOpts...))
		}
	}

	return mcp.NewTool(def.Name, opts...)
}

// Registry is the closed catalog of tools, keyed by name.
type Registry struct {
	definitions map[string]*ToolDefinition
	order       []string
}

// NewRegistry builds a registry from definitions. Names must be unique and
// every definition needs a handler.
func NewRegistry(definitions ...ToolDefinition) (*Registry, error) {
	registry := &Registry{
		definitions: make(map[string]*ToolDefinition, len(definitions)),
	}

	for i := range definitions {
		def := definitions[i]

		if def.Name == "" || def.Handler == nil {
			return nil, fmt.Errorf("tool definition %d is incomplete", i)
		}

		if _, exists := registry.definitions[def.Name]; exists {
			return nil, fmt.Errorf("tool %s is already registered", def.Name)
		}

		registry.definitions[def.Name] = &def
		registry.order = append(registry.order, def.Name)
	}

	return registry, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*ToolDefinition, bool) {
	def, ok := r.definitions[name]
	return def, ok
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []*ToolDefinition {
	out := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.definitions[name])
	}

	return out
}
