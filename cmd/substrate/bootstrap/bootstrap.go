// Package bootstrap builds live substrate components from the persisted
// configuration. Every commander that touches the substrate goes through
// here so the wiring exists exactly once.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/presencelabs/substrate/pkg/anchors"
	"github.com/presencelabs/substrate/pkg/config"
	"github.com/presencelabs/substrate/pkg/crystal"
	"github.com/presencelabs/substrate/pkg/curator"
	"github.com/presencelabs/substrate/pkg/dotdir"
	"github.com/presencelabs/substrate/pkg/embeddings"
	"github.com/presencelabs/substrate/pkg/embeddings/ollama"
	"github.com/presencelabs/substrate/pkg/eventstream"
	"github.com/presencelabs/substrate/pkg/graph"
	"github.com/presencelabs/substrate/pkg/graph/graphiti"
	"github.com/presencelabs/substrate/pkg/llm"
	"github.com/presencelabs/substrate/pkg/recall"
	"github.com/presencelabs/substrate/pkg/summarizer"
	"github.com/presencelabs/substrate/pkg/turnstore"
	"github.com/presencelabs/substrate/pkg/turnstore/postgres"
	"github.com/presencelabs/substrate/pkg/turnstore/sqlite"
	"github.com/presencelabs/substrate/pkg/vector"
	"github.com/presencelabs/substrate/pkg/vector/qdrantvec"
	"github.com/presencelabs/substrate/pkg/vector/sqlitevec"
)

// Components holds every wired substrate part plus the handles the
// commanders need to tear them down again.
type Components struct {
	Config *config.Config
	Dir    string

	Store      turnstore.Store
	Embedder   embeddings.Embedder
	Vector     vector.Driver
	Anchors    *anchors.Index
	Graph      graph.Adapter
	Chain      *crystal.Chain
	Crystals   *crystal.Engine
	Summarizer *summarizer.Summarizer
	Ingestor   *summarizer.Ingestor
	Curator    *curator.Curator
	Recall     *recall.Aggregator
	Events     eventstream.Publisher

	Logger *slog.Logger

	closers []func() error
}

// New wires the full substrate from the config under configDir (or the
// default .substrate directory when empty).
func New(ctx context.Context, configDir string, log *slog.Logger) (*Components, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	c := &Components{Config: cfg, Dir: dir, Logger: log}
	if err := c.wire(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) wire(ctx context.Context) error {
	cfg := c.Config

	store, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	c.Store = store

	embedder, err := ollama.NewEmbedder(ollama.EmbedderConfig{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	c.Embedder = embedder
	c.closers = append(c.closers, embedder.Close)

	vec, err := c.newVectorDriver(ctx)
	if err != nil {
		return err
	}
	c.Vector = vec

	index, err := anchors.New(filepath.Join(c.Dir, "anchors"), embedder, vec, c.Logger)
	if err != nil {
		return fmt.Errorf("opening anchor index: %w", err)
	}
	c.Anchors = index

	gr, err := graphiti.New(graphiti.Config{URL: cfg.Graph.Target}, c.Logger)
	if err != nil {
		return fmt.Errorf("creating graph adapter: %w", err)
	}
	c.Graph = gr
	c.closers = append(c.closers, gr.Close)

	caller, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM caller: %w", err)
	}

	chain, err := crystal.NewChain(filepath.Join(c.Dir, "crystals"), cfg.Crystal.Window)
	if err != nil {
		return fmt.Errorf("opening crystal chain: %w", err)
	}
	c.Chain = chain

	owner, err := os.Hostname()
	if err != nil || owner == "" {
		owner = "substrate"
	}

	c.Crystals = crystal.NewEngine(store, chain, caller, owner, c.Logger)
	c.Summarizer = summarizer.New(store, caller, c.Logger)

	c.Ingestor, err = summarizer.NewIngestor(c.Summarizer, gr, cfg.Graph.Namespace, owner)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	c.Curator, err = curator.New(gr, curator.Options{
		Namespace: cfg.Graph.Namespace,
		Logger:    c.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating curator: %w", err)
	}

	c.Recall = recall.New(c.Logger,
		&recall.AnchorLayer{Index: index},
		&recall.GraphLayer{Adapter: gr, Namespace: cfg.Graph.Namespace},
		&recall.CrystalLayer{Engine: c.Crystals},
		&recall.SummaryLayer{Summarizer: c.Summarizer},
	)

	if len(cfg.Events.Brokers) > 0 {
		pub := eventstream.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, c.Logger)
		c.Events = pub
		c.closers = append(c.closers, pub.Close)
	} else {
		c.Events = eventstream.Nop{}
	}

	return nil
}

func (c *Components) newStore(ctx context.Context) (turnstore.Store, error) {
	cfg := c.Config
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
		store, err := postgres.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres turn store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	case "sqlite", "":
		dsn := cfg.Storage.DSN
		if dsn == "" {
			dsn = filepath.Join(c.Dir, "turns.db")
		}
		store, err := sqlite.New(dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite turn store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

func (c *Components) newVectorDriver(ctx context.Context) (vector.Driver, error) {
	cfg := c.Config
	switch cfg.Vector.Provider {
	case "qdrant":
		host, port, err := splitHostPort(cfg.Vector.Target)
		if err != nil {
			return nil, fmt.Errorf("parsing vector.target: %w", err)
		}
		drv, err := qdrantvec.New(ctx, qdrantvec.Config{
			Host:       host,
			Port:       port,
			Collection: cfg.Vector.Collection,
			Dimensions: uint64(cfg.Embedding.Dimensions),
		}, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening qdrant vector store: %w", err)
		}
		c.closers = append(c.closers, drv.Close)
		return drv, nil

	case "sqlite", "":
		path := cfg.Vector.Target
		if path == "" {
			path = filepath.Join(c.Dir, "vectors.db")
		}
		drv, err := sqlitevec.New(sqlitevec.Config{
			DBPath:     path,
			Dimensions: cfg.Embedding.Dimensions,
		}, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite vector store: %w", err)
		}
		c.closers = append(c.closers, drv.Close)
		return drv, nil

	default:
		return nil, fmt.Errorf("unknown vector provider: %q", cfg.Vector.Provider)
	}
}

func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "localhost", 6334, nil
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, 6334, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// Close tears down every component in reverse wiring order.
func (c *Components) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
