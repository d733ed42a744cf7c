// Package crystalcmder provides the crystal chain cobra commands.
package crystalcmder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/presencelabs/substrate/cmd/substrate/bootstrap"
	"github.com/presencelabs/substrate/pkg/cliui"
	"github.com/presencelabs/substrate/pkg/logger"
)

const crystalLongDesc string = `Manage the crystal chain.

Crystals are rolling compressions of lived experience. The chain keeps a
small window of current crystals; older ones rotate into the archive.
Only the latest crystal may be deleted.`

const crystalShortDesc string = "Manage the crystal chain"

func NewCrystalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crystal",
		Short: crystalShortDesc,
		Long:  crystalLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

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

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Crystallize the recent ledger now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				created, err := c.Crystals.Create(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s Crystal %d covering turns %d-%d\n",
					cliui.SuccessMark, created.Sequence, created.StartTurnID, created.EndTurnID)
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crystals in the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(_ context.Context, c *bootstrap.Components) error {
				crystals, err := c.Crystals.List()
				if err != nil {
					return err
				}
				for _, cr := range crystals {
					if cr.Archived && !all {
						continue
					}
					state := ""
					if cr.Archived {
						state = cliui.DimStyle.Render("  (archived)")
					}
					fmt.Printf("  %s  turns %d-%d  ~%d tokens%s\n",
						cliui.KeyStyle.Render(fmt.Sprintf("crystal %d", cr.Sequence)),
						cr.StartTurnID, cr.EndTurnID, cr.TokenEstimate, state)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include archived crystals")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [sequence]",
		Short: "Render a crystal (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(_ context.Context, c *bootstrap.Components) error {
				crystals, err := c.Crystals.List()
				if err != nil {
					return err
				}
				if len(crystals) == 0 {
					fmt.Println(cliui.DimStyle.Render("no crystals yet"))
					return nil
				}

				target := crystals[len(crystals)-1]
				if len(args) == 1 {
					seq, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("sequence must be an integer")
					}
					found := false
					for _, cr := range crystals {
						if cr.Sequence == seq {
							target, found = cr, true
							break
						}
					}
					if !found {
						return fmt.Errorf("no crystal with sequence %d", seq)
					}
				}

				rendered, err := cliui.RenderMarkdown(target.Render())
				if err != nil {
					fmt.Println(target.Render())
					return nil
				}
				fmt.Fprint(os.Stdout, rendered)
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sequence>",
		Short: "Delete the latest crystal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("sequence must be an integer")
			}
			return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				if err := c.Crystals.Delete(ctx, seq); err != nil {
					return err
				}
				fmt.Printf("%s Deleted crystal %d\n", cliui.SuccessMark, seq)
				return nil
			})
		},
	}
}
