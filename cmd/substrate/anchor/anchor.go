// Package anchorcmder provides the anchor management cobra commands.
package anchorcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/presencelabs/substrate/cmd/substrate/bootstrap"
	"github.com/presencelabs/substrate/pkg/cliui"
	"github.com/presencelabs/substrate/pkg/logger"
)

const anchorLongDesc string = `Manage identity anchors.

Anchors are markdown files under .substrate/anchors/ mirrored into a
vector index for semantic search. The files on disk are the source of
truth; "anchor resync" rebuilds the index from them.`

const anchorShortDesc string = "Manage identity anchors"

func NewAnchorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchor",
		Short: anchorShortDesc,
		Long:  anchorLongDesc,
	}

	cmd.AddCommand(newSaveCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newResyncCmd())

	return cmd
}

// withComponents wires the substrate, runs fn, and tears down again.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *bootstrap.Components) error) error {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")

	log := logger.New(logger.WithDebug(debug))
	ctx := cmd.Context()

	components, err := bootstrap.New(ctx, configDir, log)
	if err != nil {
		return err
	}
	defer components.Close()

	return fn(ctx, components)
}

func newSaveCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "save <content>",
		Short: "Save an identity anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				filename, err := c.Anchors.Save(ctx, title, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s Saved %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(filename))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Anchor title (required)")
	cmd.MarkFlagRequired("title")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List anchors and their index parity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				entries, err := c.Anchors.List(ctx)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println(cliui.DimStyle.Render("no anchors"))
					return nil
				}
				for _, e := range entries {
					mark := cliui.SuccessMark
					note := ""
					if e.OnDisk != e.InIndex {
						mark = cliui.FailMark
						note = cliui.DimStyle.Render("  (drift: run anchor resync)")
					}
					fmt.Printf("  %s %s%s\n", mark, e.Filename, note)
				}
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over anchors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				results, err := c.Anchors.Search(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Println(cliui.DimStyle.Render("no matches"))
					return nil
				}
				for _, r := range results {
					fmt.Printf("\n  %s %s\n",
						cliui.KeyStyle.Render(r.Anchor.Title),
						cliui.DimStyle.Render(fmt.Sprintf("(%.3f, %s)", r.Score, r.Anchor.Filename)),
					)
					rendered, err := cliui.RenderMarkdown(r.Anchor.Content)
					if err != nil {
						fmt.Println(r.Anchor.Content)
						continue
					}
					fmt.Fprint(os.Stdout, rendered)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Max results")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete an anchor from disk and the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				if err := c.Anchors.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("%s Deleted %s\n", cliui.SuccessMark, args[0])
				return nil
			})
		},
	}
}

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rebuild the vector index from the markdown files on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				var count int
				err := cliui.Step(os.Stdout, "Resyncing anchor index", func() error {
					var err error
					count, err = c.Anchors.Resync(ctx)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s Reindexed %d anchors\n", cliui.SuccessMark, count)
				return nil
			})
		},
	}
}
