// Package ingestcmder provides the graph ingestion cobra commands.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/presencelabs/substrate/cmd/substrate/bootstrap"
	"github.com/presencelabs/substrate/pkg/cliui"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

const ingestLongDesc string = `Feed turn batches into the knowledge graph.

Batches are contiguous turn ranges with a deterministic batch id, so an
interrupted run can safely be repeated. Without --run only the backlog is
reported.`

const ingestShortDesc string = "Ingest turn batches into the knowledge graph"

func NewIngestCmd() *cobra.Command {
	var (
		run       bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")

			log := logger.New(logger.WithDebug(debug))
			ctx := cmd.Context()

			components, err := bootstrap.New(ctx, configDir, log)
			if err != nil {
				return err
			}
			defer components.Close()

			return runIngest(ctx, components, run, batchSize)
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Ingest batches until the backlog is empty")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", summarizer.DefaultBatchSize, "Max turns per batch")

	return cmd
}

func runIngest(ctx context.Context, c *bootstrap.Components, run bool, batchSize int) error {
	stats, err := c.Ingestor.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %d\n", cliui.KeyStyle.Render("Uningested turns:"), stats.UningestedCount)
	if !run {
		if stats.Recommended {
			fmt.Printf("  %s\n\n", cliui.DimStyle.Render("backlog is large enough; run with --run to ingest"))
		} else {
			fmt.Println()
		}
		return nil
	}

	total := 0
	for {
		batch, err := c.Ingestor.IngestBatch(ctx, batchSize)
		if err != nil {
			if errors.Is(err, turnstore.ErrLockHeld) {
				fmt.Printf("  %s another ingester holds the lock; try again later\n\n", cliui.FailMark)
				return nil
			}
			return err
		}
		if batch.IngestedCount == 0 {
			break
		}
		total += batch.IngestedCount
		fmt.Printf("  %s batch %s: turns %d-%d (%d ingested)\n",
			cliui.SuccessMark, batch.BatchID, batch.Turns.Start, batch.Turns.End, batch.IngestedCount)
	}

	fmt.Printf("\n  %s Ingested %d turns\n\n", cliui.SuccessMark, total)
	return nil
}
