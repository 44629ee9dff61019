// Package mcpadapter exposes hybrid search as a Model Context Protocol
// tool so agent runtimes can query the index over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/ports"
	"github.com/searchstack/hybridd/internal/infrastructure/featurestore"
)

const serverVersion = "1.0.0"

type Server struct {
	cfg      config.Config
	profiles config.SearchProfiles
	searchUC ports.HybridSearcher
	embedder ports.Embedder
	logger   *slog.Logger
}

func NewServer(
	cfg config.Config,
	profiles config.SearchProfiles,
	searchUC ports.HybridSearcher,
	embedder ports.Embedder,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		profiles: profiles,
		searchUC: searchUC,
		embedder: embedder,
		logger:   logger,
	}
}

// MCPServer builds the tool-bearing server; Serve runs it over stdio.
func (s *Server) MCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"hybridd",
		serverVersion,
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search the document index with lexical, tensor or fused hybrid retrieval."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query text."),
		),
		mcp.WithString("profile",
			mcp.Description("Named search profile; the service default applies when omitted."),
		),
		mcp.WithString("retrieval_method",
			mcp.Description("One of lexical, tensor or disjunction."),
			mcp.Enum("lexical", "tensor", "disjunction"),
		),
		mcp.WithString("ranking_method",
			mcp.Description("One of lexical, tensor or rrf."),
			mcp.Enum("lexical", "tensor", "rrf"),
		),
		mcp.WithNumber("alpha",
			mcp.Description("Tensor branch weight in [0,1] for fused ranking."),
		),
		mcp.WithNumber("rrf_k",
			mcp.Description("Reciprocal rank dampening constant, must be positive."),
		),
		mcp.WithNumber("hits",
			mcp.Description("Maximum hits per branch."),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearch)

	return mcpServer
}

func (s *Server) Serve() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile, err := s.profiles.Resolve(request.GetString("profile", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	retrieval := request.GetString("retrieval_method", s.cfg.HybridRetrievalMethod)
	opts := featurestore.QueryOptions{
		Query:     query,
		Retrieval: retrieval,
		Ranking:   request.GetString("ranking_method", s.cfg.HybridRankingMethod),
		RRFK:      request.GetInt("rrf_k", s.cfg.HybridRRFK),
		Alpha:     request.GetFloat("alpha", s.cfg.HybridAlpha),
		Hits:      request.GetInt("hits", s.cfg.HybridHits),
		TimeoutMs: s.cfg.HybridTimeoutMs,
	}

	if featurestore.NeedsEmbedding(retrieval) {
		vector, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("embed query: %v", err)), nil
		}
		opts.Embedding = make([]float64, len(vector))
		for i, v := range vector {
			opts.Embedding[i] = float64(v)
		}
	}

	hits, err := s.searchUC.Search(ctx, featurestore.FromProfile(profile, opts))
	if err != nil {
		s.logger.Warn("mcp_search_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(map[string]any{
		"hits":  hits.Hits(),
		"count": hits.Len(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
