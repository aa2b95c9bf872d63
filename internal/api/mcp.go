package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/lectern/internal/persona"
	"github.com/kalambet/lectern/internal/pipeline"
	"github.com/kalambet/lectern/internal/retrieval"
	"github.com/kalambet/lectern/internal/scheduling"
)

const (
	defaultToolLimit = 5
	maxToolLimit     = 20
)

// MCPRetriever abstracts semantic search over indexed documents.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.ScoredChunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Search     pipeline.Searcher
	Scheduling *scheduling.Service
	Retriever  MCPRetriever // optional; if nil, recall_documents returns an error
	Version    string
}

// NewMCPServer creates an MCP server exposing lectern's search, scheduling
// and document recall as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"lectern",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("lectern: academic web search, professor office hours, and recall over uploaded course documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_sources",
			mcp.WithDescription("Search the web for academic sources on a question, ranked for a professor's field."),
			mcp.WithString("query", mcp.Description("Student question or topic"), mcp.Required()),
			mcp.WithString("field", mcp.Description("Academic field used to focus the search")),
			mcp.WithString("name", mcp.Description("Professor name used in one search variant")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of sources (default 5)")),
		),
		mcpSearchSources(deps),
	)

	s.AddTool(
		mcp.NewTool("list_availability",
			mcp.WithDescription("List professor office-hour slots, optionally for one professor."),
			mcp.WithString("professor_name", mcp.Description("Only list this professor's slots")),
		),
		mcpListAvailability(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_documents",
			mcp.WithDescription("Semantically search uploaded course documents and return the closest excerpts."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of excerpts (default 5)")),
		),
		mcpRecallDocuments(deps),
	)

	return s
}

func toolLimit(req mcp.CallToolRequest) int {
	limit := req.GetInt("limit", defaultToolLimit)
	if limit <= 0 {
		limit = defaultToolLimit
	}
	return min(limit, maxToolLimit)
}

func mcpSearchSources(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		if deps.Search == nil {
			return mcpError("search is not configured"), nil
		}

		p := persona.Persona{
			Name:  req.GetString("name", ""),
			Field: req.GetString("field", ""),
		}
		rendered, results := deps.Search.Aggregate(ctx, query, p, toolLimit(req))
		if len(results) == 0 {
			return mcpText("No sources found."), nil
		}
		return mcpText(rendered), nil
	}
}

func mcpListAvailability(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		slots, err := deps.Scheduling.ListAvailability(ctx, req.GetString("professor_name", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("listing availability failed: %v", err)), nil
		}

		b, err := json.Marshal(slots)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal availability: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecallDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		if deps.Retriever == nil {
			return mcpError("document recall is disabled"), nil
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, toolLimit(req))
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}

		type excerpt struct {
			DocumentID string  `json:"document_id"`
			Source     string  `json:"source"`
			Text       string  `json:"text"`
			Score      float32 `json:"score"`
		}
		results := make([]excerpt, len(chunks))
		for i, c := range chunks {
			results[i] = excerpt{
				DocumentID: c.DocumentID,
				Source:     c.Source,
				Text:       c.Text,
				Score:      c.Score,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
