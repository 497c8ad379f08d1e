package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package tools

import "context"

// Echo returns the input text, optionally upper-cased.
//
//mcp:tool
func Echo(ctx context.Context, text string, uppercase *bool) (string, error) {
	return text, nil
}

//mcp:prompt greeting
func Greeting(ctx context.Context, name string) (string, error) {
	return "hi " + name, nil
}

func unexportedHelper() {}

// NotAnnotated has a doc comment but no marker.
func NotAnnotated() {}
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.go"), []byte(sampleSource), 0o644))
	return dir
}

func TestScanFindsAnnotatedFunctionsOnly(t *testing.T) {
	dir := writeSample(t)
	fns, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, fns, 2)

	byName := make(map[string]Function, len(fns))
	for _, f := range fns {
		byName[f.FuncName] = f
	}

	echo, ok := byName["Echo"]
	require.True(t, ok)
	assert.Equal(t, KindTool, echo.Kind)
	assert.Equal(t, "Echo", echo.Name)
	assert.True(t, echo.HasContext)
	require.Len(t, echo.Params, 2)
	assert.Equal(t, "text", echo.Params[0].Name)
	assert.False(t, echo.Params[0].Pointer)
	assert.Equal(t, "uppercase", echo.Params[1].Name)
	assert.True(t, echo.Params[1].Pointer)

	greeting, ok := byName["Greeting"]
	require.True(t, ok)
	assert.Equal(t, KindPrompt, greeting.Kind)
	assert.Equal(t, "greeting", greeting.Name)
}

func TestScanRejectsUnexportedAnnotatedFunction(t *testing.T) {
	dir := t.TempDir()
	src := `package tools

//mcp:tool
func hidden() {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.go"), []byte(src), 0o644))
	_, err := Scan(dir)
	assert.Error(t, err)
}

func TestScanIgnoresGeneratedAndTestFiles(t *testing.T) {
	dir := writeSample(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools_mcpgen.go"), []byte("package tools\n\n//mcp:tool\nfunc ShouldBeIgnored() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools_test.go"), []byte("package tools\n\n//mcp:tool\nfunc AlsoIgnored() {}\n"), 0o644))

	fns, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, fns, 2)
}
