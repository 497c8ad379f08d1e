// Package pagination implements the lazy, cursor-threaded iteration pattern
// every MCP list endpoint (tools/list, prompts/list, resources/list, ...)
// shares: send a request with the previous page's cursor, stop when the
// server returns no nextCursor.
//
// # Using the driver
//
//	d := pagination.New(
//	    func(ctx context.Context, params protocol.ListToolsParams) (protocol.ListToolsResult, error) {
//	        // send tools/list with params and decode the result
//	    },
//	    func(cursor string) protocol.ListToolsParams {
//	        return protocol.ListToolsParams{Cursor: cursor}
//	    },
//	    func(result protocol.ListToolsResult) ([]protocol.Tool, string) {
//	        return result.Tools, result.NextCursor
//	    },
//	)
//
//	for tools, err := range d.Iterate(ctx) {
//	    if err != nil {
//	        break
//	    }
//	    ...
//	}
package pagination
