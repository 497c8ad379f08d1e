package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcperrors "github.com/mcpruntime/core/pkg/errors"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/registry"
)

// ToolsProvider answers tools/list and tools/call.
type ToolsProvider interface {
	ListTools(ctx context.Context, cursor string) (tools []protocol.Tool, nextCursor string, err error)
	CallTool(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error)
}

// ResourcesProvider answers resources/list, resources/templates/list,
// resources/read, resources/subscribe, and resources/unsubscribe.
type ResourcesProvider interface {
	ListResources(ctx context.Context, cursor string) (resources []protocol.Resource, nextCursor string, err error)
	ListResourceTemplates(ctx context.Context, cursor string) (templates []protocol.ResourceTemplate, nextCursor string, err error)
	ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error)
	SubscribeResource(ctx context.Context, uri string) error
	UnsubscribeResource(ctx context.Context, uri string) error
}

// PromptsProvider answers prompts/list and prompts/get.
type PromptsProvider interface {
	ListPrompts(ctx context.Context, cursor string) (prompts []protocol.Prompt, nextCursor string, err error)
	GetPrompt(ctx context.Context, name string, arguments json.RawMessage) (*protocol.GetPromptResult, error)
}

// CompletionProvider answers completion/complete.
type CompletionProvider interface {
	Complete(ctx context.Context, params *protocol.CompleteParams) (*protocol.CompleteResult, error)
}

// errNotFound reports a missing named entity as an mcperrors.IllegalArgument,
// so the handler boundary replies with -32602.
func errNotFound(kind, name string) error {
	return mcperrors.IllegalArgument(fmt.Sprintf("%s not found: %s", kind, name))
}

// MapToolsProvider is a minimal in-memory ToolsProvider backing examples and
// tests: a name-keyed map plus a single callback that answers every call.
type MapToolsProvider struct {
	mu    sync.RWMutex
	tools map[string]protocol.Tool
	call  func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error)
}

// NewMapToolsProvider builds a MapToolsProvider. call answers every
// tools/call regardless of which registered tool was named; callers needing
// per-tool dispatch should switch on name inside call.
func NewMapToolsProvider(call func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error)) *MapToolsProvider {
	return &MapToolsProvider{tools: make(map[string]protocol.Tool), call: call}
}

// Register adds a tool to the list returned by ListTools.
func (p *MapToolsProvider) Register(tool protocol.Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tools[tool.Name] = tool
}

// ListTools returns every registered tool as a single page; cursor is
// ignored since this provider never truncates.
func (p *MapToolsProvider) ListTools(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tools := make([]protocol.Tool, 0, len(p.tools))
	for _, tool := range p.tools {
		tools = append(tools, tool)
	}
	return tools, "", nil
}

// CallTool invokes the provider's single call callback.
func (p *MapToolsProvider) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	p.mu.RLock()
	_, known := p.tools[name]
	p.mu.RUnlock()
	if !known {
		return nil, errNotFound("tool", name)
	}
	return p.call(ctx, name, arguments)
}

// MapPromptsProvider is a minimal in-memory PromptsProvider.
type MapPromptsProvider struct {
	mu      sync.RWMutex
	prompts map[string]protocol.Prompt
	render  func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.GetPromptResult, error)
}

// NewMapPromptsProvider builds a MapPromptsProvider; render answers every
// prompts/get.
func NewMapPromptsProvider(render func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.GetPromptResult, error)) *MapPromptsProvider {
	return &MapPromptsProvider{prompts: make(map[string]protocol.Prompt), render: render}
}

// Register adds a prompt to the list returned by ListPrompts.
func (p *MapPromptsProvider) Register(prompt protocol.Prompt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts[prompt.Name] = prompt
}

// ListPrompts returns every registered prompt as a single page.
func (p *MapPromptsProvider) ListPrompts(ctx context.Context, cursor string) ([]protocol.Prompt, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prompts := make([]protocol.Prompt, 0, len(p.prompts))
	for _, prompt := range p.prompts {
		prompts = append(prompts, prompt)
	}
	return prompts, "", nil
}

// GetPrompt renders the named prompt via the provider's render callback.
func (p *MapPromptsProvider) GetPrompt(ctx context.Context, name string, arguments json.RawMessage) (*protocol.GetPromptResult, error) {
	p.mu.RLock()
	_, known := p.prompts[name]
	p.mu.RUnlock()
	if !known {
		return nil, errNotFound("prompt", name)
	}
	return p.render(ctx, name, arguments)
}

// MapResourcesProvider is a minimal in-memory ResourcesProvider; reads are
// delegated to a callback so content can be generated on demand rather than
// pre-populated.
type MapResourcesProvider struct {
	mu        sync.RWMutex
	resources map[string]protocol.Resource
	templates map[string]protocol.ResourceTemplate
	read      func(ctx context.Context, uri string) ([]protocol.ResourceContents, error)
}

// NewMapResourcesProvider builds a MapResourcesProvider; read answers every
// resources/read.
func NewMapResourcesProvider(read func(ctx context.Context, uri string) ([]protocol.ResourceContents, error)) *MapResourcesProvider {
	return &MapResourcesProvider{
		resources: make(map[string]protocol.Resource),
		templates: make(map[string]protocol.ResourceTemplate),
		read:      read,
	}
}

// Register adds a resource to the list returned by ListResources.
func (p *MapResourcesProvider) Register(resource protocol.Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[resource.URI] = resource
}

// RegisterTemplate adds a resource template to the list returned by
// ListResourceTemplates.
func (p *MapResourcesProvider) RegisterTemplate(template protocol.ResourceTemplate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[template.URITemplate] = template
}

// ListResources returns every registered resource as a single page.
func (p *MapResourcesProvider) ListResources(ctx context.Context, cursor string) ([]protocol.Resource, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	resources := make([]protocol.Resource, 0, len(p.resources))
	for _, r := range p.resources {
		resources = append(resources, r)
	}
	return resources, "", nil
}

// ListResourceTemplates returns every registered template as a single page.
func (p *MapResourcesProvider) ListResourceTemplates(ctx context.Context, cursor string) ([]protocol.ResourceTemplate, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	templates := make([]protocol.ResourceTemplate, 0, len(p.templates))
	for _, t := range p.templates {
		templates = append(templates, t)
	}
	return templates, "", nil
}

// ReadResource delegates to the provider's read callback.
func (p *MapResourcesProvider) ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
	p.mu.RLock()
	_, known := p.resources[uri]
	p.mu.RUnlock()
	if !known {
		return nil, errNotFound("resource", uri)
	}
	return p.read(ctx, uri)
}

// SubscribeResource and UnsubscribeResource are no-ops here: subscription
// bookkeeping lives in subscriptionManager (subscriptions.go), which wraps
// any ResourcesProvider.
func (p *MapResourcesProvider) SubscribeResource(ctx context.Context, uri string) error   { return nil }
func (p *MapResourcesProvider) UnsubscribeResource(ctx context.Context, uri string) error { return nil }

// RegistryToolsProvider adapts a *registry.Registry (populated by code
// generated from //mcp:tool annotations) into a ToolsProvider, so a server
// can be wired directly to generated handlers without a hand-written
// Map*Provider in between.
type RegistryToolsProvider struct {
	reg *registry.Registry
}

// NewRegistryToolsProvider wraps reg's tool namespace.
func NewRegistryToolsProvider(reg *registry.Registry) *RegistryToolsProvider {
	return &RegistryToolsProvider{reg: reg}
}

func (p *RegistryToolsProvider) ListTools(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
	descriptors := p.reg.Tools()
	tools := make([]protocol.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, protocol.Tool{
			Name:        d.Name,
			InputSchema: parameterSchema(d.Parameters),
		})
	}
	return tools, "", nil
}

func (p *RegistryToolsProvider) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	d, ok := p.reg.Tool(name)
	if !ok {
		return nil, errNotFound("tool", name)
	}
	if arguments == nil {
		arguments = json.RawMessage(`{}`)
	}
	result, err := d.Handler.Call(ctx, arguments)
	if err != nil {
		return nil, err
	}
	if r, ok := result.(*protocol.CallToolResult); ok {
		return r, nil
	}
	return nil, fmt.Errorf("tool %q returned unexpected result type %T", name, result)
}

// RegistryPromptsProvider is RegistryToolsProvider's counterpart for the
// prompts namespace.
type RegistryPromptsProvider struct {
	reg *registry.Registry
}

// NewRegistryPromptsProvider wraps reg's prompt namespace.
func NewRegistryPromptsProvider(reg *registry.Registry) *RegistryPromptsProvider {
	return &RegistryPromptsProvider{reg: reg}
}

func (p *RegistryPromptsProvider) ListPrompts(ctx context.Context, cursor string) ([]protocol.Prompt, string, error) {
	descriptors := p.reg.Prompts()
	prompts := make([]protocol.Prompt, 0, len(descriptors))
	for _, d := range descriptors {
		prompts = append(prompts, protocol.Prompt{Name: d.Name})
	}
	return prompts, "", nil
}

func (p *RegistryPromptsProvider) GetPrompt(ctx context.Context, name string, arguments json.RawMessage) (*protocol.GetPromptResult, error) {
	d, ok := p.reg.Prompt(name)
	if !ok {
		return nil, errNotFound("prompt", name)
	}
	if arguments == nil {
		arguments = json.RawMessage(`{}`)
	}
	result, err := d.Handler.Call(ctx, arguments)
	if err != nil {
		return nil, err
	}
	if r, ok := result.(*protocol.GetPromptResult); ok {
		return r, nil
	}
	return nil, fmt.Errorf("prompt %q returned unexpected result type %T", name, result)
}

// parameterSchema builds a minimal JSON Schema object from a registry
// descriptor's parameter list: every non-nullable parameter is required, and
// each property carries registry.Parameter.Type (a Go type string) as its
// "description" with no JSON Schema "type" — good enough for clients that
// only need the parameter names, not full schema validation.
func parameterSchema(params []registry.Parameter) json.RawMessage {
	properties := make(map[string]interface{}, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = map[string]string{"description": p.Type}
		if !p.IsNullable {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return raw
}
