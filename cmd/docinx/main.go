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
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/docinx"
	"github.com/poiesic/docinx/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User ID that owns uploads and scopes searches",
		Value:   "cli",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docinx",
		Usage: "Resilient document ingestion, search and chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "Override a setting, e.g. --set chunk_size=800 (repeatable)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and run the task workers",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to http_addr)",
					},
					&cli.BoolFlag{
						Name:  "no-worker",
						Usage: "Do not run task workers in this process",
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Run the task workers until interrupted",
				Action: workerCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Upload files for processing",
				ArgsUsage: "<files...>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Process the uploads in this process and report their status",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Ingest files created or changed in a directory",
				Action: watchCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory to watch",
						Required: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the uploaded documents",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about the uploaded documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:  "session",
						Usage: "Continue an existing chat session",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the processing status of a document",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
			},
			{
				Name:      "reindex",
				Usage:     "Re-embed the chunks of one document or of every document",
				ArgsUsage: "[document-id]",
				Action:    reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Reindex every searchable document",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "With --all, only reindex this user's documents",
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Show queue depths, circuit breakers and cache sizes",
				Action: healthCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig layers --set overrides over the configuration file and the
// environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	for _, pair := range c.StringSlice("set") {
		if err := cfg.SetPair(pair); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*docinx.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	engine, err := docinx.Open(c.Context, cfg, docinx.WithProgress(c.App.ErrWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}
