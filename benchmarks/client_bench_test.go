package benchmarks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcpruntime/core/pkg/client"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
)

// BenchmarkClientOperations benchmarks various client operations
func BenchmarkClientOperations(b *testing.B) {
	b.Run("CallTool", func(b *testing.B) {
		benchmarkClientCallTool(b)
	})

	b.Run("ReadResource", func(b *testing.B) {
		benchmarkClientReadResource(b)
	})

	b.Run("ListTools", func(b *testing.B) {
		benchmarkClientListTools(b)
	})

	b.Run("ListResources", func(b *testing.B) {
		benchmarkClientListResources(b)
	})

	b.Run("ConcurrentToolCalls/10", func(b *testing.B) {
		benchmarkConcurrentToolCalls(b, 10)
	})

	b.Run("ConcurrentToolCalls/100", func(b *testing.B) {
		benchmarkConcurrentToolCalls(b, 100)
	})

	b.Run("WithResourceChangedCallback", func(b *testing.B) {
		benchmarkClientWithResourceChangedCallback(b)
	})
}

// benchmarkClientCallTool benchmarks tool calling performance
func benchmarkClientCallTool(b *testing.B) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	args := map[string]interface{}{
		"input": "test data",
		"options": map[string]interface{}{
			"format":   "json",
			"validate": true,
		},
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := c.CallTool(ctx, "test_tool", args)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// benchmarkClientReadResource benchmarks resource reading performance
func benchmarkClientReadResource(b *testing.B) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := c.ReadResource(ctx, "test://resource/1")
		if err != nil {
			b.Fatal(err)
		}
	}
}

// benchmarkClientListTools benchmarks tool listing performance
func benchmarkClientListTools(b *testing.B) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _, err := c.ListTools(ctx, "")
		if err != nil {
			b.Fatal(err)
		}
	}
}

// benchmarkClientListResources benchmarks resource listing performance
func benchmarkClientListResources(b *testing.B) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _, err := c.ListResources(ctx, "")
		if err != nil {
			b.Fatal(err)
		}
	}
}

// benchmarkConcurrentToolCalls benchmarks concurrent tool calling
func benchmarkConcurrentToolCalls(b *testing.B, concurrency int) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	args := map[string]interface{}{
		"input": "concurrent test",
	}

	b.SetParallelism(concurrency)
	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, err := c.CallTool(ctx, "test_tool", args)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}

// benchmarkClientWithResourceChangedCallback benchmarks dispatch overhead when
// a resources/updated notification triggers the client's registered callback.
func benchmarkClientWithResourceChangedCallback(b *testing.B) {
	ctx := context.Background()

	config := transport.DefaultTransportConfig(transport.TransportTypeStdio)
	config.StdioReader = mockReader()
	config.StdioWriter = mockWriter()

	t, err := transport.NewTransport(config)
	if err != nil {
		b.Fatal(err)
	}

	callbackCount := 0
	c := client.New(t,
		client.WithName("benchmark-client"),
		client.WithVersion("1.0.0"),
	)
	c.SetResourceChangedCallback(func(uri string) {
		callbackCount++
	})

	setupMockServer(t)

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		params, _ := json.Marshal(protocol.ResourceUpdatedParams{URI: "test://resource/1"})
		t.HandleNotification(ctx, &protocol.Notification{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			Method:         "notifications/resources/updated",
			Params:         params,
		})
	}

	b.Logf("Callbacks triggered: %d", callbackCount)
}

// BenchmarkPaginatedOperations benchmarks paginated list operations
func BenchmarkPaginatedOperations(b *testing.B) {
	b.Run("ListTools/AllPages", func(b *testing.B) {
		benchmarkPaginatedList(b, "tools")
	})

	b.Run("ListResources/AllPages", func(b *testing.B) {
		benchmarkPaginatedList(b, "resources")
	})
}

func benchmarkPaginatedList(b *testing.B, kind string) {
	ctx := context.Background()
	c, cleanup := createTestClient(b)
	defer cleanup()

	if err := c.Initialize(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		var err error
		if kind == "tools" {
			_, err = c.ListAllTools(ctx)
		} else {
			_, err = c.ListAllResources(ctx)
		}
		if err != nil {
			b.Fatal(err)
		}
	}
}

// Helper functions

func createTestClient(b *testing.B) (*client.Client, func()) {
	config := transport.DefaultTransportConfig(transport.TransportTypeStdio)
	config.StdioReader = mockReader()
	config.StdioWriter = mockWriter()

	t, err := transport.NewTransport(config)
	if err != nil {
		b.Fatal(err)
	}

	c := client.New(t,
		client.WithName("benchmark-client"),
		client.WithVersion("1.0.0"),
	)

	setupMockServer(t)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.Stop(ctx)
	}

	return c, cleanup
}

func setupMockServer(t transport.Transport) {
	t.RegisterRequestHandler("initialize", func(ctx context.Context, params interface{}) (interface{}, error) {
		return &protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolRevision,
			ServerInfo: protocol.ServerInfo{
				Name:    "benchmark-server",
				Version: "1.0.0",
			},
			Capabilities: protocol.ServerCapabilities{},
		}, nil
	})

	t.RegisterRequestHandler("tools/list", func(ctx context.Context, params interface{}) (interface{}, error) {
		tools := make([]protocol.Tool, 50)
		for i := 0; i < 50; i++ {
			tools[i] = protocol.Tool{
				Name:        "test_tool",
				Description: "Test tool for benchmarking",
				InputSchema: json.RawMessage(`{"type":"object"}`),
			}
		}
		return &protocol.ListToolsResult{Tools: tools}, nil
	})

	t.RegisterRequestHandler("tools/call", func(ctx context.Context, params interface{}) (interface{}, error) {
		return &protocol.CallToolResult{
			Content: []protocol.Content{protocol.NewTextContent("success")},
		}, nil
	})

	t.RegisterRequestHandler("resources/list", func(ctx context.Context, params interface{}) (interface{}, error) {
		resources := make([]protocol.Resource, 50)
		for i := 0; i < 50; i++ {
			resources[i] = protocol.Resource{
				URI:         "test://resource/1",
				Name:        "Test Resource",
				Description: "Test resource for benchmarking",
				MimeType:    "application/json",
			}
		}
		return &protocol.ListResourcesResult{Resources: resources}, nil
	})

	t.RegisterRequestHandler("resources/read", func(ctx context.Context, params interface{}) (interface{}, error) {
		return &protocol.ReadResourceResult{
			Contents: []protocol.ResourceContents{{
				URI:      "test://resource/1",
				MimeType: "application/json",
				Text:     `{"test":"data"}`,
			}},
		}, nil
	})

	go func() {
		ctx := context.Background()
		t.Initialize(ctx)
		t.Start(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
}

func mockReader() *mockReadWriter {
	return &mockReadWriter{
		data: make(chan []byte, 1000),
	}
}

func mockWriter() *mockReadWriter {
	return &mockReadWriter{
		data: make(chan []byte, 1000),
	}
}

type mockReadWriter struct {
	data chan []byte
}

func (m *mockReadWriter) Read(p []byte) (n int, err error) {
	select {
	case data := <-m.data:
		copy(p, data)
		return len(data), nil
	case <-time.After(100 * time.Millisecond):
		return 0, nil
	}
}

func (m *mockReadWriter) Write(p []byte) (n int, err error) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case m.data <- data:
		return len(p), nil
	default:
		return len(p), nil
	}
}
