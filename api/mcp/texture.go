package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/graph"
)

// TextureAddInput represents the input arguments for the texture_add tool.
type TextureAddInput struct {
	Text          string     `json:"text" jsonschema:"the free text to run through entity extraction"`
	ReferenceTime *time.Time `json:"reference_time,omitempty" jsonschema:"when the described events happened (default: now)"`
	Namespace     string     `json:"namespace,omitempty" jsonschema:"graph namespace override"`
	Instructions  string     `json:"instructions,omitempty" jsonschema:"extra extraction guidance"`
}

// TextureAddOutput represents the output of the texture_add tool.
type TextureAddOutput struct {
	Summary string `json:"summary"`
}

func (s *Server) handleTextureAdd(ctx context.Context, req *mcp.CallToolRequest, input TextureAddInput) (*mcp.CallToolResult, TextureAddOutput, error) {
	ref := time.Now().UTC()
	if input.ReferenceTime != nil {
		ref = *input.ReferenceTime
	}

	summary, err := s.config.Graph.AddEpisode(ctx, graph.EpisodeRequest{
		Text:          input.Text,
		ReferenceTime: ref,
		Namespace:     s.namespace(input.Namespace),
		Instructions:  input.Instructions,
	})
	if err != nil {
		s.config.Logger.Error("texture add failed", "error", err)
		return errResult("Failed to add episode: %v", err), TextureAddOutput{}, nil
	}

	output := TextureAddOutput{Summary: summary}
	result, err := okResult(output)
	return result, output, err
}

// TextureSearchInput represents the input arguments for the texture_search tool.
type TextureSearchInput struct {
	Query     string `json:"query" jsonschema:"the fact search query"`
	Limit     int    `json:"limit,omitempty" jsonschema:"max facts to return (default: 10)"`
	Namespace string `json:"namespace,omitempty" jsonschema:"graph namespace override"`
}

// TextureSearchOutput represents the output of the texture_search tool.
type TextureSearchOutput struct {
	Facts []graph.Fact `json:"facts"`
	Count int          `json:"count"`
}

func (s *Server) handleTextureSearch(ctx context.Context, req *mcp.CallToolRequest, input TextureSearchInput) (*mcp.CallToolResult, TextureSearchOutput, error) {
	facts, err := s.config.Graph.Search(ctx, input.Query, s.namespace(input.Namespace), input.Limit)
	if err != nil {
		return errResult("Graph search failed: %v", err), TextureSearchOutput{}, nil
	}

	output := TextureSearchOutput{Facts: facts, Count: len(facts)}
	result, err := okResult(output)
	return result, output, err
}

// TextureExploreInput represents the input arguments for the texture_explore tool.
type TextureExploreInput struct {
	Entity    string `json:"entity" jsonschema:"the entity name to explore from"`
	Depth     int    `json:"depth,omitempty" jsonschema:"neighborhood walk depth (default: 1)"`
	Namespace string `json:"namespace,omitempty" jsonschema:"graph namespace override"`
}

// TextureExploreOutput represents the output of the texture_explore tool.
type TextureExploreOutput struct {
	Subgraph *graph.Subgraph `json:"subgraph"`
}

func (s *Server) handleTextureExplore(ctx context.Context, req *mcp.CallToolRequest, input TextureExploreInput) (*mcp.CallToolResult, TextureExploreOutput, error) {
	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}

	sub, err := s.config.Graph.Explore(ctx, input.Entity, depth, s.namespace(input.Namespace))
	if err != nil {
		return errResult("Graph explore failed: %v", err), TextureExploreOutput{}, nil
	}

	output := TextureExploreOutput{Subgraph: sub}
	result, err := okResult(output)
	return result, output, err
}

// TextureTimelineInput represents the input arguments for the texture_timeline tool.
type TextureTimelineInput struct {
	Since     *time.Time `json:"since,omitempty" jsonschema:"window start (inclusive)"`
	Until     *time.Time `json:"until,omitempty" jsonschema:"window end (inclusive)"`
	Namespace string     `json:"namespace,omitempty" jsonschema:"graph namespace override"`
}

// TextureTimelineOutput represents the output of the texture_timeline tool.
type TextureTimelineOutput struct {
	Episodes []graph.Episode `json:"episodes"`
	Count    int             `json:"count"`
}

func (s *Server) handleTextureTimeline(ctx context.Context, req *mcp.CallToolRequest, input TextureTimelineInput) (*mcp.CallToolResult, TextureTimelineOutput, error) {
	var since, until time.Time
	if input.Since != nil {
		since = *input.Since
	}
	if input.Until != nil {
		until = *input.Until
	}

	episodes, err := s.config.Graph.Timeline(ctx, since, until, s.namespace(input.Namespace))
	if err != nil {
		return errResult("Timeline failed: %v", err), TextureTimelineOutput{}, nil
	}

	output := TextureTimelineOutput{Episodes: episodes, Count: len(episodes)}
	result, err := okResult(output)
	return result, output, err
}

// TextureDeleteInput represents the input arguments for the texture_delete tool.
type TextureDeleteInput struct {
	UUID string `json:"uuid" jsonschema:"the fact uuid to delete"`
}

// TextureDeleteOutput represents the output of the texture_delete tool.
type TextureDeleteOutput struct {
	Deleted string `json:"deleted"`
}

func (s *Server) handleTextureDelete(ctx context.Context, req *mcp.CallToolRequest, input TextureDeleteInput) (*mcp.CallToolResult, TextureDeleteOutput, error) {
	if err := s.config.Graph.Delete(ctx, input.UUID); err != nil {
		return errResult("Failed to delete fact: %v", err), TextureDeleteOutput{}, nil
	}

	output := TextureDeleteOutput{Deleted: input.UUID}
	result, err := okResult(output)
	return result, output, err
}

// TextureAddTripletInput represents the input arguments for the texture_add_triplet tool.
type TextureAddTripletInput struct {
	SourceEntity string `json:"source_entity" jsonschema:"the subject entity name"`
	Predicate    string `json:"predicate" jsonschema:"the relation between source and target"`
	TargetEntity string `json:"target_entity" jsonschema:"the object entity name"`
	FactText     string `json:"fact_text,omitempty" jsonschema:"optional human-readable fact sentence"`
	SourceType   string `json:"source_type,omitempty" jsonschema:"optional source entity type"`
	TargetType   string `json:"target_type,omitempty" jsonschema:"optional target entity type"`
	Namespace    string `json:"namespace,omitempty" jsonschema:"graph namespace override"`
}

// TextureAddTripletOutput represents the output of the texture_add_triplet tool.
type TextureAddTripletOutput struct {
	Added bool `json:"added"`
}

func (s *Server) handleTextureAddTriplet(ctx context.Context, req *mcp.CallToolRequest, input TextureAddTripletInput) (*mcp.CallToolResult, TextureAddTripletOutput, error) {
	err := s.config.Graph.AddTriplet(ctx, graph.Triplet{
		SourceEntity: input.SourceEntity,
		Predicate:    input.Predicate,
		TargetEntity: input.TargetEntity,
		FactText:     input.FactText,
		SourceType:   graph.EntityType(input.SourceType),
		TargetType:   graph.EntityType(input.TargetType),
		Namespace:    s.namespace(input.Namespace),
	})
	if err != nil {
		return errResult("Failed to add triplet: %v", err), TextureAddTripletOutput{}, nil
	}

	output := TextureAddTripletOutput{Added: true}
	result, err := okResult(output)
	return result, output, err
}
