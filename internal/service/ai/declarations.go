package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// functionDeclaration 是客户端传入的函数声明格式（Gemini 风格）。
type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  *parameterSpec `json:"parameters"`
}

type parameterSpec struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description"`
	Enum        []string                  `json:"enum"`
	Properties  map[string]*parameterSpec `json:"properties"`
	Items       *parameterSpec            `json:"items"`
	Required    []string                  `json:"required"`
}

type toolGroup struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

// DeclarationsFromJSON converts caller supplied tool declarations into eino tool
// infos. Both `[{"functionDeclarations":[...]}]` and a flat list of declarations
// are accepted; null or empty input yields no tools.
func DeclarationsFromJSON(raw json.RawMessage) ([]*schema.ToolInfo, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "[]" {
		return nil, nil
	}

	var groups []toolGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}

	var decls []functionDeclaration
	grouped := false
	for _, g := range groups {
		if len(g.FunctionDeclarations) > 0 {
			grouped = true
			decls = append(decls, g.FunctionDeclarations...)
		}
	}
	if !grouped {
		if err := json.Unmarshal(raw, &decls); err != nil {
			return nil, fmt.Errorf("decode tools: %w", err)
		}
	}

	infos := make([]*schema.ToolInfo, 0, len(decls))
	for _, d := range decls {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("decode tools: declaration without name")
		}
		info := &schema.ToolInfo{Name: name, Desc: d.Description}
		if d.Parameters != nil && len(d.Parameters.Properties) > 0 {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(toParams(d.Parameters))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func toParams(spec *parameterSpec) map[string]*schema.ParameterInfo {
	required := make(map[string]bool, len(spec.Required))
	for _, r := range spec.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(spec.Properties))
	for name, prop := range spec.Properties {
		if prop == nil {
			continue
		}
		params[name] = toParam(prop, required[name])
	}
	return params
}

func toParam(spec *parameterSpec, required bool) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     toDataType(spec.Type),
		Desc:     spec.Description,
		Enum:     spec.Enum,
		Required: required,
	}
	if spec.Items != nil {
		info.ElemInfo = toParam(spec.Items, false)
	}
	if len(spec.Properties) > 0 {
		info.SubParams = toParams(spec)
	}
	return info
}

func toDataType(raw string) schema.DataType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
