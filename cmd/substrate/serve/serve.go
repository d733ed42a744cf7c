// Package servecmder provides the substrate serve cobra command.
package servecmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/presencelabs/substrate/api"
	"github.com/presencelabs/substrate/api/mcp"
	"github.com/presencelabs/substrate/cmd/substrate/bootstrap"
	"github.com/presencelabs/substrate/pkg/config"
	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/scheduler"
	"github.com/presencelabs/substrate/pkg/summarizer"
)

type serveCommander struct {
	listen       string
	configDir    string
	debug        bool
	noBackground bool
}

const serveLongDesc string = `Run the substrate server.

Serves the REST API and the MCP endpoint on one listener, and runs the
background maintenance loop (crystallization, graph ingestion, curation)
unless --no-background is set.`

const serveShortDesc string = "Run the substrate server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default: config api.listen)")
	cmd.Flags().BoolVar(&cmder.noBackground, "no-background", false, "Disable the background maintenance loop")

	return cmd
}

func (c *serveCommander) run(parent context.Context) error {
	log := logger.New(logger.WithDebug(c.debug))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.New(ctx, c.configDir, log)
	if err != nil {
		return err
	}
	defer components.Close()

	// Env vars (SUBSTRATE_API_LISTEN etc.) sit between CLI flags and the
	// config file in precedence.
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}

	listen := c.listen
	if listen == "" {
		listen = v.GetString("api.listen")
	}
	if listen == "" {
		listen = components.Config.API.Listen
	}

	var sched *scheduler.Scheduler
	if !c.noBackground {
		sched = scheduler.New(log, []scheduler.Job{
			&scheduler.CrystallizeJob{Engine: components.Crystals},
			&scheduler.IngestJob{Ingestor: components.Ingestor, BatchSize: summarizer.DefaultBatchSize},
			&scheduler.CurateJob{Curator: components.Curator},
		})
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Store:      components.Store,
		Anchors:    components.Anchors,
		Graph:      components.Graph,
		Crystals:   components.Crystals,
		Summarizer: components.Summarizer,
		Ingestor:   components.Ingestor,
		Recall:     components.Recall,
		Namespace:  components.Config.Graph.Namespace,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr: listen,
		Namespace:  components.Config.Graph.Namespace,
	}, api.Deps{
		Store:      components.Store,
		Anchors:    components.Anchors,
		Graph:      components.Graph,
		Curator:    components.Curator,
		Crystals:   components.Crystals,
		Summarizer: components.Summarizer,
		Ingestor:   components.Ingestor,
		Recall:     components.Recall,
		Scheduler:  sched,
		Events:     components.Events,
		Logger:     log,
	}, mcpServer.Handler())

	if sched != nil {
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("scheduler stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := components.Anchors.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Warn("anchor watcher stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("substrate serving", "listen", listen, "namespace", components.Config.Graph.Namespace)
	return server.Run()
}
