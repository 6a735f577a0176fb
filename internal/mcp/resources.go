package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const queryStatsURI = "postsearch://query_stats"

func (s *Server) registerQueryStatsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_stats",
			URI:         queryStatsURI,
			Description: "Search traffic: top terms, zero-result queries, latency distribution, cache hits",
			MIMEType:    "application/json",
		},
		s.readQueryStats,
	)
}

func (s *Server) readQueryStats(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := s.queryStatsJSON()
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      queryStatsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

func (s *Server) queryStatsJSON() ([]byte, error) {
	if s.stats == nil {
		return nil, NewInvalidParamsError("query stats not available")
	}
	data, err := json.MarshalIndent(s.stats.Snapshot(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return data, nil
}
