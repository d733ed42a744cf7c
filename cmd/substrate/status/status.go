// Package statuscmder provides the substrate status cobra command.
package statuscmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/presencelabs/substrate/pkg/cliui"
	"github.com/presencelabs/substrate/pkg/config"
	"github.com/presencelabs/substrate/pkg/substrate"
)

type statusCommander struct {
	target string
}

const statusLongDesc string = `Show per-component health of a running substrate server.

Queries the /v1/health endpoint and renders each memory layer's status.
A degraded layer means recall quality is reduced; a critical layer means
writes to that tier will fail.`

const statusShortDesc string = "Show substrate health"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.target, "target", "t", "", "Base URL of the substrate server (default: derived from config api.listen)")

	return cmd
}

func (c *statusCommander) run(configDir string) error {
	target := c.target
	if target == "" {
		cfger, err := config.NewConfiger(configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg, err := cfger.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		target = "http://localhost" + cfg.API.Listen
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(target + "/v1/health")
	if err != nil {
		return fmt.Errorf("substrate unreachable at %s: %w", target, err)
	}
	defer resp.Body.Close()

	var report substrate.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decoding health report: %w", err)
	}

	fmt.Printf("\n  %s %s\n\n", cliui.KeyStyle.Render("Substrate:"), cliui.StatusBadge(report.Status))
	cliui.RenderHealth(os.Stdout, report)
	fmt.Println()

	return nil
}
