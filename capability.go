package mcptunnel

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Capability descriptors and handler signatures are the MCP SDK's own
// types, re-exported so callers rarely need to import the SDK directly.
// A descriptor is plain serializable data; the handler paired with it at
// registration time stays local and never crosses the tunnel.

// Tool describes an invocable tool.
type Tool = mcp.Tool

// ToolAnnotations carries optional tool behavior hints.
type ToolAnnotations = mcp.ToolAnnotations

// ToolHandler executes a tool call.
type ToolHandler = mcp.ToolHandler

// CallToolRequest is the request passed to a ToolHandler.
type CallToolRequest = mcp.CallToolRequest

// CallToolParamsRaw carries a tool call's name and undecoded arguments.
type CallToolParamsRaw = mcp.CallToolParamsRaw

// CallToolResult is the result returned by a ToolHandler.
type CallToolResult = mcp.CallToolResult

// Prompt describes a retrievable prompt template.
type Prompt = mcp.Prompt

// PromptArgument describes one prompt parameter.
type PromptArgument = mcp.PromptArgument

// PromptMessage is one message of an expanded prompt.
type PromptMessage = mcp.PromptMessage

// PromptHandler expands a prompt.
type PromptHandler = mcp.PromptHandler

// GetPromptRequest is the request passed to a PromptHandler.
type GetPromptRequest = mcp.GetPromptRequest

// GetPromptParams carries a prompt request's name and arguments.
type GetPromptParams = mcp.GetPromptParams

// GetPromptResult is the result returned by a PromptHandler.
type GetPromptResult = mcp.GetPromptResult

// Resource describes a readable resource.
type Resource = mcp.Resource

// ResourceContents is one content item of a read resource.
type ResourceContents = mcp.ResourceContents

// ResourceHandler reads a resource.
type ResourceHandler = mcp.ResourceHandler

// ReadResourceRequest is the request passed to a ResourceHandler.
type ReadResourceRequest = mcp.ReadResourceRequest

// ReadResourceParams carries a resource read's URI.
type ReadResourceParams = mcp.ReadResourceParams

// ReadResourceResult is the result returned by a ResourceHandler.
type ReadResourceResult = mcp.ReadResourceResult

// Content is a content block in tool results and prompt messages.
type Content = mcp.Content

// TextContent is a text content block.
type TextContent = mcp.TextContent

// ImageContent is a binary image content block.
type ImageContent = mcp.ImageContent

// Role identifies the speaker of a prompt message.
type Role = mcp.Role

// Implementation names a server implementation.
type Implementation = mcp.Implementation

// Schema is a JSON Schema value used for tool input schemas.
type Schema = jsonschema.Schema

// NewTool creates a tool descriptor.
func NewTool(name, description string, inputSchema *Schema) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// NewPrompt creates a prompt descriptor.
func NewPrompt(name, description string, args ...*PromptArgument) *Prompt {
	return &Prompt{
		Name:        name,
		Description: description,
		Arguments:   args,
	}
}

// NewResource creates a resource descriptor.
func NewResource(uri, name, mimeType string) *Resource {
	return &Resource{
		URI:      uri,
		Name:     name,
		MIMEType: mimeType,
	}
}

// SimpleSchema creates a jsonschema.Schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}
// All listed properties are required. This is a convenience for tools
// that do not need the full jsonschema API.
func SimpleSchema(props map[string]string) *Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)
		required = append(required, name)
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// goTypeToJSONSchema converts a Go type string to a JSON Schema type.
func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	default:
		if len(goType) > 2 && goType[:2] == "[]" {
			return &jsonschema.Schema{
				Type:  "array",
				Items: goTypeToJSONSchema(goType[2:]),
			}
		}

		// Default to string
		return &jsonschema.Schema{Type: "string"}
	}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{
			&TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating a failed call.
func ErrorResult(message string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{
			&TextContent{Text: message},
		},
		IsError: true,
	}
}

// ImageResult creates a CallToolResult with image content.
func ImageResult(data []byte, mimeType string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{
			&ImageContent{Data: data, MIMEType: mimeType},
		},
	}
}

// TextPromptResult creates a GetPromptResult with a single user message.
func TextPromptResult(description, text string) *GetPromptResult {
	return &GetPromptResult{
		Description: description,
		Messages: []*PromptMessage{
			{Role: "user", Content: &TextContent{Text: text}},
		},
	}
}

// TextResourceResult creates a ReadResourceResult with text contents.
func TextResourceResult(uri, mimeType, text string) *ReadResourceResult {
	return &ReadResourceResult{
		Contents: []*ResourceContents{
			{URI: uri, MIMEType: mimeType, Text: text},
		},
	}
}

// BlobResourceResult creates a ReadResourceResult with binary contents.
func BlobResourceResult(uri, mimeType string, blob []byte) *ReadResourceResult {
	return &ReadResourceResult{
		Contents: []*ResourceContents{
			{URI: uri, MIMEType: mimeType, Blob: blob},
		},
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
