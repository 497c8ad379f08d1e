// Command mcpgen scans a package directory for //mcp:tool and //mcp:prompt
// annotated functions and writes one <file>_mcpgen.go per source file that
// had at least one annotation, registering a generated handler for each
// into pkg/registry from its own init().
//
// Typical usage, via a go:generate directive in the annotated package:
//
//	//go:generate go run github.com/mcpruntime/core/cmd/mcpgen -dir .
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mcpruntime/core/pkg/codegen"
)

func main() {
	dir := flag.String("dir", ".", "package directory to scan for //mcp:tool and //mcp:prompt functions")
	flag.Parse()

	functions, err := codegen.Scan(*dir)
	if err != nil {
		log.Fatalf("mcpgen: %v", err)
	}
	if len(functions) == 0 {
		log.Printf("mcpgen: no //mcp:tool or //mcp:prompt functions found in %s", *dir)
		return
	}

	byFile := make(map[string][]codegen.Function)
	for _, f := range functions {
		byFile[f.File] = append(byFile[f.File], f)
	}

	for file, fns := range byFile {
		src, err := codegen.Generate(fns)
		if err != nil {
			log.Fatalf("mcpgen: %v", err)
		}
		out := outputPath(file)
		if err := os.WriteFile(out, src, 0o644); err != nil {
			log.Fatalf("mcpgen: write %s: %v", out, err)
		}
		fmt.Printf("mcpgen: wrote %s (%d handler(s))\n", out, len(fns))
	}
}

func outputPath(sourceFile string) string {
	dir := filepath.Dir(sourceFile)
	base := filepath.Base(sourceFile)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.Join(dir, stem+"_mcpgen.go")
}
