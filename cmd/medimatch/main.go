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
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/medimatch"
	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/api"
	"github.com/poiesic/medimatch/ingestion"
	"github.com/poiesic/medimatch/reembed"
	"github.com/poiesic/medimatch/search"
	"github.com/poiesic/medimatch/storage/mongo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "medimatch",
		Usage: "Semantic medication name lookup",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MEDIMATCH_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Find the medications closest to a query",
				ArgsUsage: "<query words...>",
				Action:    searchCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of matches per sub-query",
						Value: api.DefaultK,
					},
					&cli.BoolFlag{
						Name:  "single",
						Usage: "Embed the whole query once instead of fusing prefix sub-queries",
					},
					&cli.BoolFlag{
						Name:  "no-widen",
						Usage: "Use k for every sub-query instead of k+2, k+1, k",
					},
				),
			},
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: serveCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"MEDIMATCH_ADDR"},
					},
					&cli.StringFlag{
						Name:  "cors-origin",
						Usage: "Value of Access-Control-Allow-Origin",
						Value: "*",
					},
				),
			},
			{
				Name:   "import",
				Usage:  "Import a vector CSV (name,v0,v1,...) into the catalog",
				Action: importCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Vector CSV file, - for stdin",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Delete every stored medication before importing",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to store per batch",
						Value: ingestion.DefaultBatchSize,
					},
				),
			},
			{
				Name:   "vectorize",
				Usage:  "Embed a list of medication names",
				Action: vectorizeCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Names CSV file, - for stdin",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "column",
						Usage: "Header of the name column",
						Value: ingestion.DefaultNameColumn,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write name,v0,v1,... rows to this file, - for stdout",
					},
					&cli.BoolFlag{
						Name:  "store",
						Usage: "Store the embedded names in the catalog",
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "With --store, delete every stored medication first",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of names per embedding request",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent embedding requests",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: ingestion.DefaultMaxRetries,
					},
				),
			},
			{
				Name:   "extract-names",
				Usage:  "Extract unique medication names from a CSV column",
				Action: extractNamesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Source CSV file, - for stdin",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "column",
						Usage: "Header of the name column",
						Value: ingestion.DefaultNameColumn,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output CSV file, - for stdout",
						Value:   "-",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every stored medication with the configured model",
				Action: reembedCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "normalize",
						Usage: "Scale new vectors to unit length",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show catalog size, dimension and model",
				Action: statsCommand,
				Flags:  engineFlags(),
			},
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
			EnvVars:  []string{"MEDIMATCH_DB"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"MEDIMATCH_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name; must match the model that built the catalog",
			Value:   "all-minilm",
			EnvVars: []string{"MEDIMATCH_EMBEDDING_MODEL"},
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Expected embedding dimension, 0 to skip the check",
			Value: ai.DefaultDimension,
		},
		&cli.StringFlag{
			Name:    "embedding-token",
			Usage:   "API key for the embedding service",
			EnvVars: []string{"MEDIMATCH_EMBEDDING_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "mongo-uri",
			Usage:   "Read the search catalog from MongoDB instead of the local store",
			EnvVars: []string{"MONGO_URI"},
		},
		&cli.StringFlag{
			Name:  "mongo-database",
			Usage: "MongoDB database holding the medications collection",
			Value: "medimatch",
		},
		&cli.StringFlag{
			Name:  "mongo-collection",
			Usage: "MongoDB collection of {name, vector} documents",
			Value: mongo.DefaultCollection,
		},
	}
}

// openEngine builds the engine from the shared flags. The returned cleanup
// closes the engine and any MongoDB connection.
func openEngine(ctx context.Context, c *cli.Context) (*medimatch.Engine, func(), error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("dimension")),
		ai.WithToken(c.String("embedding-token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []medimatch.EngineOption{medimatch.WithAIConfig(aiConfig)}

	var source *mongo.Source
	if uri := c.String("mongo-uri"); uri != "" {
		var err error
		source, err = mongo.Connect(ctx, uri, c.String("mongo-database"), c.String("mongo-collection"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		opts = append(opts, medimatch.WithCatalogSource(source))
	}

	engine, err := medimatch.NewEngine(c.String("db"), opts...)
	if err != nil {
		if source != nil {
			source.Close(context.WithoutCancel(ctx))
		}
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	cleanup := func() {
		engine.Close()
		if source != nil {
			if err := source.Close(context.WithoutCancel(ctx)); err != nil {
				slog.Error("error closing MongoDB connection", "err", err)
			}
		}
	}
	return engine, cleanup, nil
}

func searchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	engine, cleanup, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	searcher, err := engine.NewSearcher(ctx, search.WithPrefixWidening(!c.Bool("no-widen")))
	if err != nil {
		return err
	}

	var results []string
	if c.Bool("single") {
		results, err = searcher.FindClosest(ctx, query, c.Int("k"))
	} else {
		results, err = searcher.Search(ctx, query, c.Int("k"))
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := c.App.Writer
	for _, name := range results {
		fmt.Fprintln(out, name)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	searcher, err := engine.NewSearcher(ctx)
	if err != nil {
		return err
	}

	cache := engine.CatalogCache()
	if _, err := cache.Get(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	handler, err := api.NewHandler(searcher, api.WithRefresher(cache))
	if err != nil {
		return err
	}

	logger := slog.Default().With("component", "http")
	return api.ListenAndServe(ctx, c.String("addr"),
		api.Chain(handler, api.Logger(logger), api.Recover(logger), api.CORS(c.String("cors-origin"))),
		logger)
}

func importCommand(c *cli.Context) error {
	ctx := c.Context

	in, closeIn, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	meds, err := ingestion.ReadVectorCSV(in)
	if err != nil {
		return fmt.Errorf("failed to read vectors: %w", err)
	}

	engine, cleanup, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeline, err := engine.NewIngestionPipeline(ingestion.WithBatchSize(c.Int("batch-size")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	result, err := pipeline.Import(ctx, meds, c.Bool("replace"))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Imported %d medications (%d skipped)\n", result.Stored, result.Skipped)
	return nil
}

func vectorizeCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.String("output") == "" && !c.Bool("store") {
		return fmt.Errorf("nothing to do: set --output, --store or both")
	}

	in, closeIn, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	names, err := ingestion.ReadNames(in, c.String("column"))
	if err != nil {
		return fmt.Errorf("failed to read names: %w", err)
	}

	engine, cleanup, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeline, err := engine.NewIngestionPipeline(
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithMaxRetries(c.Int("max-retries")),
	)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(c.App.ErrWriter, "Embedding %d names with %s\n", len(names), c.String("embedding-model"))
	meds, err := pipeline.Vectorize(ctx, names)
	if err != nil {
		return fmt.Errorf("vectorize failed: %w", err)
	}

	if path := c.String("output"); path != "" {
		out, closeOut, err := openOutput(c, path)
		if err != nil {
			return err
		}
		defer closeOut()
		if err := ingestion.WriteVectorCSV(out, meds); err != nil {
			return fmt.Errorf("failed to write vectors: %w", err)
		}
	}

	if c.Bool("store") {
		result, err := pipeline.Import(ctx, meds, c.Bool("replace"))
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Stored %d medications (%d skipped)\n", result.Stored, result.Skipped)
	}
	return nil
}

func extractNamesCommand(c *cli.Context) error {
	in, closeIn, err := openInput(c.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	names, err := ingestion.ReadNames(in, c.String("column"))
	if err != nil {
		return fmt.Errorf("failed to read names: %w", err)
	}

	out, closeOut, err := openOutput(c, c.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if err := ingestion.WriteNames(out, c.String("column"), names); err != nil {
		return fmt.Errorf("failed to write names: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Extracted %d unique names\n", len(names))
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Normalize:      c.Bool("normalize"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, cleanup, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	reembedder, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, cleanup, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Medications: %d\n", stats.Count)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "Skipped:     %d\n", stats.Skipped)
	}
	fmt.Fprintf(out, "Dimension:   %d\n", stats.Dimension)
	if stats.Model != "" {
		fmt.Fprintf(out, "Model:       %s\n", stats.Model)
		fmt.Fprintf(out, "Updated:     %s\n", stats.UpdatedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Model:       (unstamped)\n")
	}
	fmt.Fprintf(out, "Fingerprint: %s\n", stats.Fingerprint)
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(c *cli.Context, path string) (io.Writer, func(), error) {
	if path == "-" {
		return c.App.Writer, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, func() { f.Close() }, nil
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
