// Package codegen implements the build-time scan-and-emit step that turns
// //mcp:tool and //mcp:prompt annotated functions into registry.Handler
// implementations. Go has no annotation processors, so the annotation this
// package looks for is a magic comment directly above an exported func,
// the same convention //go:generate and stringer use.
//
// Scan walks a package directory and collects one Function descriptor per
// annotated func; Generate renders the corresponding <file>_mcpgen.go
// source, one parameter envelope struct and one dispatcher type per
// function, each dispatcher wired into pkg/registry from its own init().
//
// cmd/mcpgen is the go:generate-invoked binary that ties Scan and Generate
// together for a directory on disk.
package codegen
