package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/anchors"
)

// AnchorSaveInput represents the input arguments for the anchor_save tool.
type AnchorSaveInput struct {
	Title   string `json:"title" jsonschema:"the anchor title, used to derive the filename"`
	Content string `json:"content" jsonschema:"the anchor body in markdown"`
}

// AnchorSaveOutput represents the output of the anchor_save tool.
type AnchorSaveOutput struct {
	Filename string `json:"filename"`
}

func (s *Server) handleAnchorSave(ctx context.Context, req *mcp.CallToolRequest, input AnchorSaveInput) (*mcp.CallToolResult, AnchorSaveOutput, error) {
	filename, err := s.config.Anchors.Save(ctx, input.Title, input.Content)
	if err != nil {
		s.config.Logger.Error("anchor save failed", "title", input.Title, "error", err)
		return errResult("Failed to save anchor: %v", err), AnchorSaveOutput{}, nil
	}

	output := AnchorSaveOutput{Filename: filename}
	result, err := okResult(output)
	return result, output, err
}

// AnchorSearchInput represents the input arguments for the anchor_search tool.
type AnchorSearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results to return (default: 5)"`
}

// AnchorSearchOutput represents the output of the anchor_search tool.
type AnchorSearchOutput struct {
	Results []anchors.Result `json:"results"`
	Count   int              `json:"count"`
}

func (s *Server) handleAnchorSearch(ctx context.Context, req *mcp.CallToolRequest, input AnchorSearchInput) (*mcp.CallToolResult, AnchorSearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	results, err := s.config.Anchors.Search(ctx, input.Query, limit)
	if err != nil {
		return errResult("Anchor search failed: %v", err), AnchorSearchOutput{}, nil
	}

	output := AnchorSearchOutput{Results: results, Count: len(results)}
	result, err := okResult(output)
	return result, output, err
}

// AnchorDeleteInput represents the input arguments for the anchor_delete tool.
type AnchorDeleteInput struct {
	Filename string `json:"filename" jsonschema:"the anchor filename to delete"`
}

// AnchorDeleteOutput represents the output of the anchor_delete tool.
type AnchorDeleteOutput struct {
	Deleted string `json:"deleted"`
}

func (s *Server) handleAnchorDelete(ctx context.Context, req *mcp.CallToolRequest, input AnchorDeleteInput) (*mcp.CallToolResult, AnchorDeleteOutput, error) {
	if err := s.config.Anchors.Delete(ctx, input.Filename); err != nil {
		return errResult("Failed to delete anchor: %v", err), AnchorDeleteOutput{}, nil
	}

	output := AnchorDeleteOutput{Deleted: input.Filename}
	result, err := okResult(output)
	return result, output, err
}

// AnchorListInput represents the input arguments for the anchor_list tool.
type AnchorListInput struct{}

// AnchorListOutput represents the output of the anchor_list tool.
type AnchorListOutput struct {
	Anchors []anchors.Entry `json:"anchors"`
	Count   int             `json:"count"`
}

func (s *Server) handleAnchorList(ctx context.Context, req *mcp.CallToolRequest, input AnchorListInput) (*mcp.CallToolResult, AnchorListOutput, error) {
	entries, err := s.config.Anchors.List(ctx)
	if err != nil {
		return errResult("Failed to list anchors: %v", err), AnchorListOutput{}, nil
	}

	output := AnchorListOutput{Anchors: entries, Count: len(entries)}
	result, err := okResult(output)
	return result, output, err
}

// AnchorResyncInput represents the input arguments for the anchor_resync tool.
type AnchorResyncInput struct{}

// AnchorResyncOutput represents the output of the anchor_resync tool.
type AnchorResyncOutput struct {
	Reindexed int `json:"reindexed"`
}

func (s *Server) handleAnchorResync(ctx context.Context, req *mcp.CallToolRequest, input AnchorResyncInput) (*mcp.CallToolResult, AnchorResyncOutput, error) {
	count, err := s.config.Anchors.Resync(ctx)
	if err != nil {
		return errResult("Resync failed: %v", err), AnchorResyncOutput{}, nil
	}
	s.config.Logger.Info("anchor index resynced", "reindexed", count)

	output := AnchorResyncOutput{Reindexed: count}
	result, err := okResult(output)
	return result, output, err
}
