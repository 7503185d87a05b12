// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "ontoquery",
		Usage:     "Concept-expanded structured search over an annotated imaging corpus",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML settings file",
				EnvVars: []string{"ONTOQUERY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "concept-dir",
				Usage: "Directory holding the terminology tables",
			},
			&cli.StringFlag{
				Name:  "mapping-dir",
				Usage: "Directory of phenotype mapping files",
			},
			&cli.StringFlag{
				Name:  "document-db",
				Usage: "Path to the SQLite document database",
			},
			&cli.StringFlag{
				Name:  "snapshot-dir",
				Usage: "Path to the BadgerDB transaction store",
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "Keep both stores in memory",
			},
			&cli.BoolFlag{
				Name:  "lazy",
				Usage: "Read concept rows from the transaction store on demand",
			},
			&cli.IntFlag{
				Name:  "default-depth",
				Usage: "Default closure depth for terms without qdepth",
			},
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "Worker pool size for loading and ingestion",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "Write query metrics to this file in Prometheus text format",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "query",
				Usage:     "Run a JSON query request and record its result",
				ArgsUsage: "[request.json|-]",
				Action:    queryCommand,
			},
			{
				Name:      "page",
				Usage:     "Run a JSON query request and print one page of its result",
				ArgsUsage: "[request.json|-]",
				Action:    pageCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "skip",
						Usage: "Number of rows to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of rows to print (0 prints every remaining row)",
						Value: 50,
					},
				},
			},
			{
				Name:      "closure",
				Usage:     "Print the concepts a term expands to",
				ArgsUsage: "<term>",
				Action:    closureCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "qdepth",
						Usage: "Number of narrower levels to follow",
					},
					&cli.BoolFlag{
						Name:  "same-type",
						Usage: "Only follow children sharing a semantic type group",
					},
				},
			},
			{
				Name:      "classify",
				Usage:     "Print how each token would be expanded",
				ArgsUsage: "<token>...",
				Action:    classifyCommand,
			},
			{
				Name:   "import-concepts",
				Usage:  "Load the concept table into the transaction store",
				Action: importConceptsCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Load annotated documents from JSON files or directories",
				ArgsUsage: "<path>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents written per batch",
						Value: 500,
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not report progress",
					},
				},
			},
			{
				Name:      "snapshot",
				Usage:     "Print the identifiers recorded for a transaction",
				ArgsUsage: "<transaction-id>",
				Action:    snapshotCommand,
			},
			{
				Name:      "sample",
				Usage:     "Draw a training sample from a transaction",
				ArgsUsage: "<transaction-id>",
				Action:    sampleCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "Seed for a reproducible sample (0 picks a random seed)",
					},
				},
			},
			{
				Name:      "purge",
				Usage:     "Delete a transaction",
				ArgsUsage: "<transaction-id>",
				Action:    purgeCommand,
			},
			{
				Name:   "transactions",
				Usage:  "List recorded transaction ids",
				Action: transactionsCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
