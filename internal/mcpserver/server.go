// Package mcpserver exposes the price update and export operations as MCP
// tools over stdio. Each tool call is answered by running the same request
// handler the UI channel uses and translating its replies.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentic-research/pricetag/api"
	"github.com/agentic-research/pricetag/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolUpdatePrices = "update_prices"
	ToolExportPNG    = "export_png"
	ToolPing         = "ping"
)

// Server wraps an MCP server bound to one session.
type Server struct {
	MCPServer *server.MCPServer

	// mu serializes tool calls; the scene is not safe for concurrent writers.
	mu      sync.Mutex
	session *session.Session
	logger  *slog.Logger
}

// NewServer registers the tools against sess.
func NewServer(sess *session.Session, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{session: sess, logger: logger}
	s.MCPServer = server.NewMCPServer("pricetag", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Rewrite price labels next to product labels in the loaded design, or render it to PNG."),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.MCPServer.AddTool(mcp.NewTool(ToolUpdatePrices,
		mcp.WithDescription("Rewrite the price label next to every text node that names a product. "+
			"Pass prices as an object of product name to price, or as a JSON string to keep key order."),
		mcp.WithAny("prices",
			mcp.Required(),
			mcp.Description("product name → new numeric price, as an object or a JSON object string"),
			schemaType("object", "string"),
			mcp.AdditionalProperties(map[string]any{"type": []string{"string", "number", "null"}}),
		),
	), s.handleUpdatePrices)

	s.MCPServer.AddTool(mcp.NewTool(ToolExportPNG,
		mcp.WithDescription("Render the selected node, or the frame with the most text, to a PNG image."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleExportPNG)

	s.MCPServer.AddTool(mcp.NewTool(ToolPing,
		mcp.WithDescription("Liveness check."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	), s.handlePing)
}

// schemaType sets a JSON Schema type union on a property.
func schemaType(types ...string) mcp.PropertyOption {
	return func(schema map[string]any) {
		schema["type"] = types
	}
}

// Serve speaks MCP over r/w until ctx is cancelled or r is exhausted.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return server.NewStdioServer(s.MCPServer).Listen(ctx, r, w)
}

// recorder collects the replies of one request.
type recorder struct {
	replies []api.Outbound
}

func (r *recorder) Post(m api.Outbound) error {
	r.replies = append(r.replies, m)
	return nil
}

// final returns the last non-status reply.
func (r *recorder) final() (api.Outbound, bool) {
	for i := len(r.replies) - 1; i >= 0; i-- {
		if r.replies[i].Type != api.TypeStatus {
			return r.replies[i], true
		}
	}
	return api.Outbound{}, false
}

func (s *Server) handle(ctx context.Context, msg api.Inbound) (api.Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec recorder
	if err := s.session.Handle(ctx, msg, &rec); err != nil {
		return api.Outbound{}, err
	}
	out, ok := rec.final()
	if !ok {
		return api.Outbound{}, fmt.Errorf("%s: no reply", msg.Type)
	}
	return out, nil
}

func (s *Server) handleUpdatePrices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := pricesArgument(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.handle(ctx, api.Inbound{Type: api.TypeUpdatePrices, Data: data})
	if err != nil {
		return nil, err
	}
	s.logger.Info("update_prices", "updates", out.Updates, "not_found", len(out.NotFound))
	return mcp.NewToolResultStructured(out, updateSummary(out)), nil
}

func (s *Server) handleExportPNG(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.handle(ctx, api.Inbound{Type: api.TypeExportPNG})
	if err != nil {
		return nil, err
	}
	if out.Type == api.TypeExportFailed {
		return mcp.NewToolResultError(out.Text), nil
	}
	return mcp.NewToolResultImage("exported PNG", out.Data, "image/png"), nil
}

func (s *Server) handlePing(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.handle(ctx, api.Inbound{Type: api.TypePing})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out.Type), nil
}

// pricesArgument returns the mapping as raw JSON. A string argument is taken
// verbatim so its key order survives; an object is re-encoded, which sorts
// its keys.
func pricesArgument(args map[string]any) (json.RawMessage, error) {
	v, ok := args["prices"]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing required argument %q", "prices")
	}
	switch p := v.(type) {
	case string:
		return json.RawMessage(p), nil
	case map[string]any:
		return json.Marshal(p)
	default:
		return nil, fmt.Errorf("argument %q must be an object or a JSON string, got %T", "prices", v)
	}
}

func updateSummary(out api.Outbound) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Updated %d price label(s).", out.Updates)
	if len(out.NotFound) > 0 {
		fmt.Fprintf(&b, " Not found: %s.", strings.Join(out.NotFound, ", "))
	}
	return b.String()
}
