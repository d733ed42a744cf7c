package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// SummarizeMessagesInput represents the input arguments for the summarize_messages tool.
type SummarizeMessagesInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"max turns to compress (default: 50)"`
	Kind  string `json:"kind,omitempty" jsonschema:"summary kind: work, social or technical"`
}

// SummarizeMessagesOutput represents the output of the summarize_messages tool.
// The summary is not persisted; call store_summary to keep it.
type SummarizeMessagesOutput struct {
	Summary *turnstore.Summary `json:"summary"`
	Backlog int                `json:"backlog"`
}

func (s *Server) handleSummarizeMessages(ctx context.Context, req *mcp.CallToolRequest, input SummarizeMessagesInput) (*mcp.CallToolResult, SummarizeMessagesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = summarizer.DefaultLimit
	}

	summary, err := s.config.Summarizer.Summarize(ctx, limit, input.Kind)
	if err != nil {
		s.config.Logger.Error("summarization failed", "error", err)
		return errResult("Summarization failed: %v", err), SummarizeMessagesOutput{}, nil
	}

	backlog, err := s.config.Summarizer.BacklogCount(ctx)
	if err != nil {
		return errResult("Failed to count backlog: %v", err), SummarizeMessagesOutput{}, nil
	}

	output := SummarizeMessagesOutput{Summary: summary, Backlog: backlog}
	result, err := okResult(output)
	return result, output, err
}

// StoreSummaryInput represents the input arguments for the store_summary tool.
type StoreSummaryInput struct {
	StartTurnID int64    `json:"start_turn_id" jsonschema:"first turn id the summary covers"`
	EndTurnID   int64    `json:"end_turn_id" jsonschema:"last turn id the summary covers"`
	Kind        string   `json:"kind" jsonschema:"summary kind: work, social or technical"`
	Text        string   `json:"text" jsonschema:"the summary text"`
	Channels    []string `json:"channels,omitempty" jsonschema:"channels the covered turns came from"`
}

// StoreSummaryOutput represents the output of the store_summary tool.
type StoreSummaryOutput struct {
	ID int64 `json:"id"`
}

func (s *Server) handleStoreSummary(ctx context.Context, req *mcp.CallToolRequest, input StoreSummaryInput) (*mcp.CallToolResult, StoreSummaryOutput, error) {
	id, err := s.config.Summarizer.StoreSummary(ctx, turnstore.Summary{
		StartTurnID: input.StartTurnID,
		EndTurnID:   input.EndTurnID,
		Kind:        input.Kind,
		Text:        input.Text,
		Channels:    input.Channels,
	})
	if err != nil {
		return errResult("Failed to store summary: %v", err), StoreSummaryOutput{}, nil
	}

	output := StoreSummaryOutput{ID: id}
	result, err := okResult(output)
	return result, output, err
}

// GetRecentSummariesInput represents the input arguments for the get_recent_summaries tool.
type GetRecentSummariesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"max summaries to return (default: 5)"`
}

// GetRecentSummariesOutput represents the output of the get_recent_summaries tool.
type GetRecentSummariesOutput struct {
	Summaries []turnstore.Summary `json:"summaries"`
	Count     int                 `json:"count"`
}

func (s *Server) handleGetRecentSummaries(ctx context.Context, req *mcp.CallToolRequest, input GetRecentSummariesInput) (*mcp.CallToolResult, GetRecentSummariesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	summaries, err := s.config.Summarizer.RecentSummaries(ctx, limit)
	if err != nil {
		return errResult("Failed to get summaries: %v", err), GetRecentSummariesOutput{}, nil
	}

	output := GetRecentSummariesOutput{Summaries: summaries, Count: len(summaries)}
	result, err := okResult(output)
	return result, output, err
}

// SearchSummariesInput represents the input arguments for the search_summaries tool.
type SearchSummariesInput struct {
	Query string `json:"query" jsonschema:"text to search summaries for"`
	Limit int    `json:"limit,omitempty" jsonschema:"max summaries to return (default: 10)"`
}

// SearchSummariesOutput represents the output of the search_summaries tool.
type SearchSummariesOutput struct {
	Summaries []turnstore.Summary `json:"summaries"`
	Count     int                 `json:"count"`
}

func (s *Server) handleSearchSummaries(ctx context.Context, req *mcp.CallToolRequest, input SearchSummariesInput) (*mcp.CallToolResult, SearchSummariesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	summaries, err := s.config.Summarizer.SearchSummaries(ctx, input.Query, limit)
	if err != nil {
		return errResult("Summary search failed: %v", err), SearchSummariesOutput{}, nil
	}

	output := SearchSummariesOutput{Summaries: summaries, Count: len(summaries)}
	result, err := okResult(output)
	return result, output, err
}

// SummaryStatsInput represents the input arguments for the summary_stats tool.
type SummaryStatsInput struct{}

// SummaryStatsOutput represents the output of the summary_stats tool.
type SummaryStatsOutput struct {
	Stats turnstore.SummaryStats `json:"stats"`
}

func (s *Server) handleSummaryStats(ctx context.Context, req *mcp.CallToolRequest, input SummaryStatsInput) (*mcp.CallToolResult, SummaryStatsOutput, error) {
	stats, err := s.config.Summarizer.Stats(ctx)
	if err != nil {
		return errResult("Failed to get summary stats: %v", err), SummaryStatsOutput{}, nil
	}

	output := SummaryStatsOutput{Stats: stats}
	result, err := okResult(output)
	return result, output, err
}

// IngestionStatsInput represents the input arguments for the graphiti_ingestion_stats tool.
type IngestionStatsInput struct{}

// IngestionStatsOutput represents the output of the graphiti_ingestion_stats tool.
type IngestionStatsOutput struct {
	Stats summarizer.IngestionStats `json:"stats"`
}

func (s *Server) handleIngestionStats(ctx context.Context, req *mcp.CallToolRequest, input IngestionStatsInput) (*mcp.CallToolResult, IngestionStatsOutput, error) {
	stats, err := s.config.Ingestor.Stats(ctx)
	if err != nil {
		return errResult("Failed to get ingestion stats: %v", err), IngestionStatsOutput{}, nil
	}

	output := IngestionStatsOutput{Stats: stats}
	result, err := okResult(output)
	return result, output, err
}

// IngestBatchInput represents the input arguments for the ingest_batch_to_graphiti tool.
type IngestBatchInput struct {
	BatchSize int `json:"batch_size,omitempty" jsonschema:"max turns per batch (default: 20)"`
}

// IngestBatchOutput represents the output of the ingest_batch_to_graphiti tool.
type IngestBatchOutput struct {
	Batch turnstore.Batch `json:"batch"`
}

func (s *Server) handleIngestBatch(ctx context.Context, req *mcp.CallToolRequest, input IngestBatchInput) (*mcp.CallToolResult, IngestBatchOutput, error) {
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = summarizer.DefaultBatchSize
	}

	batch, err := s.config.Ingestor.IngestBatch(ctx, batchSize)
	if err != nil {
		s.config.Logger.Error("batch ingestion failed", "error", err)
		return errResult("Batch ingestion failed: %v", err), IngestBatchOutput{}, nil
	}

	output := IngestBatchOutput{Batch: batch}
	result, err := okResult(output)
	return result, output, err
}
