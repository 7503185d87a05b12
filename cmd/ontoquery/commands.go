package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/poiesic/ontoquery"
	"github.com/poiesic/ontoquery/config"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/ingestion"
	"github.com/poiesic/ontoquery/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the settings file, if any, and applies the flags given on
// the command line over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var overrides []config.Option
	if c.IsSet("concept-dir") {
		overrides = append(overrides, config.WithConceptDir(c.String("concept-dir")))
	}
	if c.IsSet("mapping-dir") {
		overrides = append(overrides, config.WithMappingDir(c.String("mapping-dir")))
	}
	if c.IsSet("document-db") {
		overrides = append(overrides, config.WithDocumentDB(c.String("document-db")))
	}
	if c.IsSet("snapshot-dir") {
		overrides = append(overrides, config.WithSnapshotDir(c.String("snapshot-dir")))
	}
	if c.IsSet("in-memory") {
		overrides = append(overrides, config.WithInMemory(c.Bool("in-memory")))
	}
	if c.IsSet("lazy") {
		overrides = append(overrides, config.WithLazyConcepts(c.Bool("lazy")))
	}
	if c.IsSet("default-depth") {
		overrides = append(overrides, config.WithDefaultDepth(c.Int("default-depth")))
	}
	if c.IsSet("pool-size") {
		overrides = append(overrides, config.WithPoolSize(c.Int("pool-size")))
	}

	if path := c.String("config"); path != "" {
		return config.Load(path, overrides...)
	}
	return config.New(overrides...), nil
}

// withEngine opens an engine, runs fn and closes the engine. With
// --metrics-textfile the query metrics are written out afterwards.
func withEngine(c *cli.Context, fn func(ctx context.Context, e *ontoquery.Engine) error) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var opts []ontoquery.Option
	var registry *prometheus.Registry
	if path := c.String("metrics-textfile"); path != "" {
		registry = prometheus.NewRegistry()
		monitor, err := search.NewPrometheusMonitor(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, ontoquery.WithMonitor(monitor))
	}

	engine, err := ontoquery.Open(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	runErr := fn(ctx, engine)
	if registry != nil {
		if err := prometheus.WriteToTextfile(c.String("metrics-textfile"), registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return runErr
}

func readRequest(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" || path == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return data, nil
}

type queryOutput struct {
	TransactionID string           `json:"transactionId"`
	Total         int              `json:"total"`
	Skip          *int             `json:"skip,omitempty"`
	Limit         *int             `json:"limit,omitempty"`
	Results       *core.Projection `json:"results"`
}

func queryCommand(c *cli.Context) error {
	request, err := readRequest(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		result, err := e.QueryJSON(ctx, request)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, queryOutput{
			TransactionID: result.Handle(),
			Total:         result.Projection.Len(),
			Results:       result.Projection,
		})
	})
}

func pageCommand(c *cli.Context) error {
	skip, limit := c.Int("skip"), c.Int("limit")
	if skip < 0 || limit < 0 {
		return fmt.Errorf("skip and limit must not be negative")
	}
	request, err := readRequest(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		result, err := e.QueryJSON(ctx, request)
		if err != nil {
			return err
		}
		page, err := result.Cursor.Fetch(ctx, skip, limit)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, queryOutput{
			TransactionID: result.Handle(),
			Total:         result.Cursor.Len(),
			Skip:          &skip,
			Limit:         &limit,
			Results:       page,
		})
	})
}

func closureCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("closure takes exactly one term")
	}
	term := core.QueryTerm{
		Raw:          []string{c.Args().First()},
		Depth:        c.Int("qdepth"),
		SameTypeOnly: c.Bool("same-type"),
	}
	if term.Depth < 0 {
		return fmt.Errorf("qdepth must not be negative")
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		expansion, err := e.Expand(ctx, term)
		if err != nil {
			return err
		}
		if expansion.FreeText() {
			fmt.Fprintln(c.App.ErrWriter, "No concepts; the term is matched as free text")
			return nil
		}
		for _, id := range expansion.IDs {
			label, err := e.Source().Label(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", id, label)
		}
		return nil
	})
}

func classifyCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("classify takes at least one token")
	}
	return withEngine(c, func(_ context.Context, e *ontoquery.Engine) error {
		for _, token := range c.Args().Slice() {
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", token, e.Classify(token))
		}
		return nil
	})
}

func importConceptsCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		n, err := e.ImportConcepts(ctx)
		if err != nil {
			return fmt.Errorf("concept import failed: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Imported %d concepts\n", n)
		return nil
	})
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("ingest takes at least one path")
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		opts := []ingestion.Option{ingestion.WithBatchSize(c.Int("batch-size"))}
		if !c.Bool("quiet") {
			opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
		}
		pipeline, err := e.NewIngestionPipeline(opts...)
		if err != nil {
			return err
		}
		defer pipeline.Release()

		total := &ingestion.Stats{}
		var files []string
		for _, path := range c.Args().Slice() {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				files = append(files, path)
				continue
			}
			stats, err := pipeline.IngestDir(ctx, path)
			addStats(total, stats)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
		}
		if len(files) > 0 {
			stats, err := pipeline.IngestFiles(ctx, files...)
			addStats(total, stats)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
		}

		fmt.Fprintf(c.App.Writer, "Ingested %d documents from %d files\n", total.Documents, total.Files)
		for _, path := range total.Failed {
			fmt.Fprintf(c.App.Writer, "Skipped %s\n", path)
		}
		return nil
	})
}

func addStats(total, stats *ingestion.Stats) {
	if stats == nil {
		return
	}
	total.Files += stats.Files
	total.Documents += stats.Documents
	total.Failed = append(total.Failed, stats.Failed...)
}

type snapshotOutput struct {
	TransactionID string    `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
	Digest        string    `json:"digest"`
	Identifiers   []string  `json:"identifiers"`
}

func snapshotCommand(c *cli.Context) error {
	handle, err := handleArg(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		snap, err := e.Transaction(ctx, handle)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, snapshotOutput{
			TransactionID: snap.Handle,
			CreatedAt:     snap.CreatedAt,
			Digest:        fmt.Sprintf("%016x", snap.Digest),
			Identifiers:   snap.Identifiers,
		})
	})
}

func sampleCommand(c *cli.Context) error {
	handle, err := handleArg(c)
	if err != nil {
		return err
	}
	var rng *rand.Rand
	if seed := c.Uint64("seed"); seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		sample, err := e.Sample(ctx, handle, rng)
		if err != nil {
			return err
		}
		for _, id := range sample {
			fmt.Fprintln(c.App.Writer, id)
		}
		return nil
	})
}

func purgeCommand(c *cli.Context) error {
	handle, err := handleArg(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		if err := e.Purge(ctx, handle); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Purged %s\n", handle)
		return nil
	})
}

func transactionsCommand(c *cli.Context) error {
	return withEngine(c, func(ctx context.Context, e *ontoquery.Engine) error {
		handles, err := e.Transactions(ctx)
		if err != nil {
			return err
		}
		for _, handle := range handles {
			fmt.Fprintln(c.App.Writer, handle)
		}
		return nil
	})
}

func handleArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s takes exactly one transaction id", c.Command.Name)
	}
	return c.Args().First(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
