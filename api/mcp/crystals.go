package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/presencelabs/substrate/pkg/crystal"
)

// CrystallizeInput represents the input arguments for the crystallize tool.
type CrystallizeInput struct{}

// CrystallizeOutput represents the output of the crystallize tool.
type CrystallizeOutput struct {
	Crystal *crystal.Crystal `json:"crystal"`
}

func (s *Server) handleCrystallize(ctx context.Context, req *mcp.CallToolRequest, input CrystallizeInput) (*mcp.CallToolResult, CrystallizeOutput, error) {
	created, err := s.config.Crystals.Create(ctx)
	if err != nil {
		s.config.Logger.Error("crystallization failed", "error", err)
		return errResult("Crystallization failed: %v", err), CrystallizeOutput{}, nil
	}
	s.config.Logger.Info("crystal created", "sequence", created.Sequence)

	output := CrystallizeOutput{Crystal: created}
	result, err := okResult(output)
	return result, output, err
}

// CrystalListInput represents the input arguments for the crystal_list tool.
type CrystalListInput struct{}

// CrystalListOutput represents the output of the crystal_list tool.
type CrystalListOutput struct {
	Crystals []crystal.Crystal `json:"crystals"`
	Count    int               `json:"count"`
}

func (s *Server) handleCrystalList(ctx context.Context, req *mcp.CallToolRequest, input CrystalListInput) (*mcp.CallToolResult, CrystalListOutput, error) {
	crystals, err := s.config.Crystals.List()
	if err != nil {
		return errResult("Failed to list crystals: %v", err), CrystalListOutput{}, nil
	}

	output := CrystalListOutput{Crystals: crystals, Count: len(crystals)}
	result, err := okResult(output)
	return result, output, err
}

// GetCrystalsInput represents the input arguments for the get_crystals tool.
type GetCrystalsInput struct {
	N int `json:"n,omitempty" jsonschema:"max crystals to return, newest last (default: all current)"`
}

// GetCrystalsOutput represents the output of the get_crystals tool.
type GetCrystalsOutput struct {
	Crystals []crystal.Crystal `json:"crystals"`
	Count    int               `json:"count"`
}

func (s *Server) handleGetCrystals(ctx context.Context, req *mcp.CallToolRequest, input GetCrystalsInput) (*mcp.CallToolResult, GetCrystalsOutput, error) {
	crystals, err := s.config.Crystals.Current(input.N)
	if err != nil {
		return errResult("Failed to get crystals: %v", err), GetCrystalsOutput{}, nil
	}

	output := GetCrystalsOutput{Crystals: crystals, Count: len(crystals)}
	result, err := okResult(output)
	return result, output, err
}

// CrystalDeleteInput represents the input arguments for the crystal_delete tool.
type CrystalDeleteInput struct {
	Sequence int `json:"sequence" jsonschema:"the crystal sequence number to delete; must be the latest"`
}

// CrystalDeleteOutput represents the output of the crystal_delete tool.
type CrystalDeleteOutput struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleCrystalDelete(ctx context.Context, req *mcp.CallToolRequest, input CrystalDeleteInput) (*mcp.CallToolResult, CrystalDeleteOutput, error) {
	if err := s.config.Crystals.Delete(ctx, input.Sequence); err != nil {
		return errResult("Failed to delete crystal: %v", err), CrystalDeleteOutput{}, nil
	}

	output := CrystalDeleteOutput{Deleted: input.Sequence}
	result, err := okResult(output)
	return result, output, err
}
