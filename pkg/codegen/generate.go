package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"
	"text/template"
)

// maxDecisionTreeParams is the N ≤ 6 cap on optional-dispatch branches
// (2^6 = 64 leaves); beyond it Generate falls back to passing the decoded
// envelope's optional fields straight through, since Go's own nil-pointer
// zero value already distinguishes "absent" from "present" without needing
// an explicit branch per combination.
const maxDecisionTreeParams = 6

// Generate renders the <file>_mcpgen.go source for every Function found in
// a single source file. fns must all share the same Package/File.
func Generate(fns []Function) ([]byte, error) {
	if len(fns) == 0 {
		return nil, fmt.Errorf("codegen: Generate called with no functions")
	}
	pkg := fns[0].Package
	data := fileData{Package: pkg}
	for _, f := range fns {
		fd, err := buildFuncData(f)
		if err != nil {
			return nil, err
		}
		data.Functions = append(data.Functions, fd)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("codegen: render %s: %w", fns[0].File, err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codegen: gofmt %s: %w\n%s", fns[0].File, err, buf.String())
	}
	return formatted, nil
}

type fileData struct {
	Package   string
	Functions []funcData
}

type funcData struct {
	Function
	KnownKeys   []string
	RequiredArg []string
	Presence    []presenceVar
	Branches    []branchData
	Flat        bool // true when N > maxDecisionTreeParams: single direct call, no branches
	CallArgs    string
}

type presenceVar struct {
	Param string
	Var   string
}

type branchData struct {
	Cond     string
	CallArgs string
}

func buildFuncData(f Function) (funcData, error) {
	fd := funcData{Function: f}
	for _, p := range f.Params {
		fd.KnownKeys = append(fd.KnownKeys, p.Name)
	}
	for _, p := range f.Required() {
		fd.RequiredArg = append(fd.RequiredArg, p.Name)
	}
	optional := f.Optional()

	if len(optional) > maxDecisionTreeParams || len(optional) == 0 {
		fd.Flat = true
		fd.CallArgs = strings.Join(callArgs(f, nil), ", ")
		return fd, nil
	}

	for _, p := range optional {
		fd.Presence = append(fd.Presence, presenceVar{Param: p.Name, Var: p.Name + "Present"})
	}

	leaves := 1 << uint(len(optional))
	for mask := 0; mask < leaves; mask++ {
		present := make(map[string]bool, len(optional))
		var conds []string
		for i, p := range optional {
			isPresent := mask&(1<<uint(i)) != 0
			present[p.Name] = isPresent
			v := p.Name + "Present"
			if !isPresent {
				v = "!" + v
			}
			conds = append(conds, v)
		}
		fd.Branches = append(fd.Branches, branchData{
			Cond:     strings.Join(conds, " && "),
			CallArgs: strings.Join(callArgs(f, present), ", "),
		})
	}
	return fd, nil
}

// callArgs builds the target function's call-site argument list in source
// declaration order. present is nil for the flat (N=0 or fallback) case,
// meaning every optional field is forwarded as decoded (already nil when
// absent, since encoding/json leaves omitted pointer fields untouched); for
// a decision-tree leaf, present says exactly which optional parameters this
// leaf observed present, and absent ones are passed as literal nil so each
// leaf is a self-contained direct invocation.
func callArgs(f Function, present map[string]bool) []string {
	var args []string
	if f.HasContext {
		args = append(args, "ctx")
	}
	for _, p := range f.Params {
		field := "args." + fieldName(p.Name)
		if !p.Pointer {
			args = append(args, field)
			continue
		}
		if present == nil {
			args = append(args, field)
			continue
		}
		if present[p.Name] {
			args = append(args, field)
		} else {
			args = append(args, "nil")
		}
	}
	return args
}

func fieldName(name string) string {
	return strings.ToUpper(name[:1]) + name[1:]
}

func knownKeysCaseList(keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, k := range sorted {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return strings.Join(quoted, ", ")
}

var fileTemplate = template.Must(template.New("mcpgen").Funcs(template.FuncMap{
	"fieldName":  fieldName,
	"knownKeys":  knownKeysCaseList,
	"quote":      func(s string) string { return fmt.Sprintf("%q", s) },
}).Parse(mcpgenTemplate))

const mcpgenTemplate = `// Code generated by mcpgen. DO NOT EDIT.

package {{.Package}}

import (
	"context"
	"encoding/json"

	mcperrors "github.com/mcpruntime/core/pkg/errors"
	"github.com/mcpruntime/core/pkg/registry"
)

{{range $f := .Functions}}
type {{$f.EnvelopeName}} struct {
{{- range $f.Params}}
	{{fieldName .Name}} {{.GoType}} ` + "`" + `json:"{{.Name}}{{if .Pointer}},omitempty{{end}}"` + "`" + `
{{- end}}
}

type {{$f.HandlerName}} struct{}

func ({{$f.HandlerName}}) Call(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var known map[string]json.RawMessage
	if err := json.Unmarshal(raw, &known); err != nil {
		return nil, mcperrors.IllegalArgument("invalid params: " + err.Error())
	}
{{if $f.KnownKeys}}
	for key := range known {
		switch key {
		case {{knownKeys $f.KnownKeys}}:
		default:
			return nil, mcperrors.UnknownArgument(key)
		}
	}
{{else}}
	for key := range known {
		return nil, mcperrors.UnknownArgument(key)
	}
{{end}}
{{range $f.RequiredArg}}
	if _, ok := known[{{quote .}}]; !ok {
		return nil, mcperrors.MissingRequiredArgument({{quote .}})
	}
{{- end}}
	var args {{$f.EnvelopeName}}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, mcperrors.IllegalArgument("invalid params: " + err.Error())
	}
{{if $f.Flat}}
	return {{$f.FuncName}}({{$f.CallArgs}})
{{else}}
{{range $f.Presence}}
	_, {{.Var}} := known[{{quote .Param}}]
{{- end}}
	switch {
{{- range $f.Branches}}
	case {{.Cond}}:
		return {{$f.FuncName}}({{.CallArgs}})
{{- end}}
	}
	panic("unreachable: mcpgen decision tree is exhaustive over 2^N presence combinations")
{{end}}
}

func init() {
	registry.Register{{if eq $f.Kind "tool"}}Tool{{else}}Prompt{{end}}(registry.Descriptor{
		Name:    {{quote $f.Name}},
		Handler: {{$f.HandlerName}}{},
		Parameters: []registry.Parameter{
{{- range $f.Params}}
			{Name: {{quote .Name}}, Type: {{quote .GoType}}, IsNullable: {{.Pointer}}},
{{- end}}
		},
	})
}
{{end}}
`
