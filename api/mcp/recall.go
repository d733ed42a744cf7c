package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/substrate"
)

// AmbientRecallInput represents the input arguments for the ambient_recall tool.
type AmbientRecallInput struct {
	Context       string `json:"context" jsonschema:"the conversational context to recall memories for"`
	LimitPerLayer int    `json:"limit_per_layer,omitempty" jsonschema:"max results per memory layer (default: 5)"`
}

// AmbientRecallOutput represents the output of the ambient_recall tool.
type AmbientRecallOutput struct {
	Results []recall.Result             `json:"results"`
	Layers  []substrate.ComponentHealth `json:"layers"`
	Text    string                      `json:"text"`
}

func (s *Server) handleAmbientRecall(ctx context.Context, req *mcp.CallToolRequest, input AmbientRecallInput) (*mcp.CallToolResult, AmbientRecallOutput, error) {
	s.config.Logger.Debug("MCP ambient recall", "context", input.Context, "limit", input.LimitPerLayer)

	out, err := s.config.Recall.Recall(ctx, input.Context, input.LimitPerLayer)
	if err != nil {
		s.config.Logger.Error("ambient recall failed", "error", err)
		return errResult("Recall failed: %v", err), AmbientRecallOutput{}, nil
	}

	output := AmbientRecallOutput{
		Results: out.Results,
		Layers:  out.Layers,
		Text:    recall.Format(out),
	}
	result, err := okResult(output)
	return result, output, err
}

// HealthInput represents the input arguments for the pps_health tool.
type HealthInput struct{}

// HealthOutput represents the output of the pps_health tool.
type HealthOutput struct {
	Status     substrate.Status            `json:"status"`
	Components []substrate.ComponentHealth `json:"components"`
}

func (s *Server) handleHealth(ctx context.Context, req *mcp.CallToolRequest, input HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
	output := HealthOutput{Status: substrate.StatusHealthy}

	store := substrate.ComponentHealth{Component: "turnstore", Status: substrate.StatusHealthy}
	if err := s.config.Store.IntegrityCheck(ctx); err != nil {
		store.Status = substrate.StatusCritical
		store.Detail = err.Error()
	}
	output.Components = append(output.Components, store)

	output.Components = append(output.Components, s.config.Anchors.Health(ctx))

	graphHealth := substrate.ComponentHealth{Component: "graph", Status: substrate.StatusHealthy}
	if err := s.config.Graph.Ping(ctx); err != nil {
		graphHealth.Status = substrate.StatusDegraded
		graphHealth.Detail = err.Error()
	}
	output.Components = append(output.Components, graphHealth)

	crystals := substrate.ComponentHealth{Component: "crystals", Status: substrate.StatusHealthy}
	if current, err := s.config.Crystals.Current(0); err != nil {
		crystals.Status = substrate.StatusCritical
		crystals.Detail = err.Error()
	} else {
		crystals.Counts = map[string]int{"current": len(current)}
	}
	output.Components = append(output.Components, crystals)

	summaries := substrate.ComponentHealth{Component: "summaries", Status: substrate.StatusHealthy}
	if stats, err := s.config.Summarizer.Stats(ctx); err != nil {
		summaries.Status = substrate.StatusDegraded
		summaries.Detail = err.Error()
	} else {
		summaries.Counts = map[string]int{"total": stats.Total, "backlog": stats.Backlog}
	}
	output.Components = append(output.Components, summaries)

	for _, component := range output.Components {
		if component.Status == substrate.StatusCritical {
			output.Status = substrate.StatusCritical
			break
		}
		if component.Status == substrate.StatusDegraded {
			output.Status = substrate.StatusDegraded
		}
	}

	result, err := okResult(output)
	return result, output, err
}
