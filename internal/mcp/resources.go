// ABOUTME: MCP resource implementations for forma.
// ABOUTME: Provides forma://schedule/upcoming and forma://summary resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	upcomingURI = "forma://schedule/upcoming"
	summaryURI  = "forma://summary"
)

func (s *Server) registerResources() {
	// Next sessions of the signed-in user
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         upcomingURI,
		Name:        "Upcoming Sessions",
		Description: "The next 10 sessions visible to the signed-in user",
		MIMEType:    "application/json",
	}, s.handleUpcomingResource)

	// Dashboard summary
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "Dashboard Summary",
		Description: "Client count and today's sessions for trainers; next session and progress count for clients",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

// Resource handlers

func (s *Server) handleUpcomingResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, err
	}

	items, err := s.app.Services.Schedule.Upcoming(ctx, sess, s.now(), 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := make([]scheduleItemOutput, 0, len(items))
	for _, it := range items {
		sessions = append(sessions, s.toScheduleOutput(ctx, it))
	}

	return jsonResource(upcomingURI, map[string]any{"sessions": sessions})
}

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, err
	}

	summary, err := s.app.Services.Dashboard.Summary(ctx, sess, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}

	return jsonResource(summaryURI, map[string]any{
		"user":    toSessionOutput(sess),
		"summary": summary,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
