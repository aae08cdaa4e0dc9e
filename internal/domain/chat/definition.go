package chat

import "fmt"

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the function part of a ToolDefinition.
type FunctionDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is a JSON-schema object describing tool arguments.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single named argument.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// NewFunctionTool builds a ToolDefinition of type "function".
func NewFunctionTool(name, description string, params Parameters) ToolDefinition {
	if params.Type == "" {
		params.Type = "object"
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// Validate checks the definition for the mistakes a model API would reject:
// an empty name or description, and required fields with no matching property.
func (d *ToolDefinition) Validate() error {
	if d.Type != "function" {
		return fmt.Errorf("tool %q: type must be function, got %q", d.Function.Name, d.Type)
	}
	if d.Function.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.Function.Description == "" {
		return fmt.Errorf("tool %q: description is required", d.Function.Name)
	}
	return validateRequired(d.Function.Name, d.Function.Parameters.Properties, d.Function.Parameters.Required)
}

func validateRequired(tool string, props map[string]Property, required []string) error {
	for _, name := range required {
		if _, ok := props[name]; !ok {
			return fmt.Errorf("tool %q: required field %q has no property", tool, name)
		}
	}
	for name, p := range props {
		if p.Items != nil {
			if err := validateRequired(tool+"."+name, p.Items.Properties, p.Items.Required); err != nil {
				return err
			}
		}
	}
	return nil
}
