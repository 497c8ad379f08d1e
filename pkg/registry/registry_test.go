package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	result interface{}
	err    error
}

func (s stubHandler) Call(ctx context.Context, args json.RawMessage) (interface{}, error) {
	return s.result, s.err
}

func TestRequiredParameter(t *testing.T) {
	assert.True(t, Parameter{Name: "a"}.Required())
	assert.False(t, Parameter{Name: "a", IsNullable: true}.Required())
	assert.False(t, Parameter{Name: "a", HasDefault: true}.Required())
}

func TestRegisterAndLookupTool(t *testing.T) {
	r := New()
	r.RegisterTool(Descriptor{
		Name:       "echo",
		Handler:    stubHandler{result: "ok"},
		Parameters: []Parameter{{Name: "text"}},
	})

	d, ok := r.Tool("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", d.Name)
	require.Len(t, r.Tools(), 1)

	_, ok = r.Tool("missing")
	assert.False(t, ok)
}

func TestRegisterPromptNamespaceDisjointFromTools(t *testing.T) {
	r := New()
	r.RegisterTool(Descriptor{Name: "shared", Handler: stubHandler{}})
	r.RegisterPrompt(Descriptor{Name: "shared", Handler: stubHandler{}})

	_, toolOK := r.Tool("shared")
	_, promptOK := r.Prompt("shared")
	assert.True(t, toolOK)
	assert.True(t, promptOK)
}

func TestDuplicateNamePanics(t *testing.T) {
	r := New()
	r.RegisterTool(Descriptor{Name: "dup", Handler: stubHandler{}})
	assert.Panics(t, func() {
		r.RegisterTool(Descriptor{Name: "dup", Handler: stubHandler{}})
	})
}

func TestRegisterAfterStartPanics(t *testing.T) {
	r := New()
	r.Start()
	assert.Panics(t, func() {
		r.RegisterTool(Descriptor{Name: "late", Handler: stubHandler{}})
	})
}

func TestHandlerCallInvokesUnderlyingResult(t *testing.T) {
	r := New()
	r.RegisterTool(Descriptor{Name: "sum", Handler: stubHandler{result: 42}})
	d, ok := r.Tool("sum")
	require.True(t, ok)

	result, err := d.Handler.Call(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
