package registry

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// ParamDescriptor is the public view of a declared parameter.
type ParamDescriptor struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Descriptor is the public view of an entry used for capability discovery.
type Descriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Kind        Kind              `json:"kind"`
	Parameters  []ParamDescriptor `json:"parameters"`
	Returns     ParamType         `json:"returns,omitempty"`
}

func describe(entry Entry) Descriptor {
	params := make([]ParamDescriptor, 0, len(entry.Params))
	for _, param := range entry.Params {
		params = append(params, ParamDescriptor{
			Name:        param.Name,
			Type:        param.Type,
			Description: param.Description,
			Required:    true,
		})
	}
	return Descriptor{
		Name:        entry.Name,
		Description: entry.Description,
		Kind:        entry.Kind,
		Parameters:  params,
		Returns:     entry.Returns,
	}
}

// Names returns the parameter names in declaration order.
func (d Descriptor) Names() []string {
	names := make([]string, 0, len(d.Parameters))
	for _, param := range d.Parameters {
		names = append(names, param.Name)
	}
	return names
}

// InputSchema renders the parameter list as a JSON Schema object. Unknown
// properties are allowed because extra arguments are ignored on dispatch.
func (d Descriptor) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Parameters)),
	}
	for _, param := range d.Parameters {
		schema.Properties[param.Name] = &jsonschema.Schema{
			Type:        string(param.Type),
			Description: param.Description,
		}
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}
