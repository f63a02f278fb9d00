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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/knowbot"
	"github.com/poiesic/knowbot/config"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/reembed"
	"github.com/poiesic/knowbot/training"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func botFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "bot",
		Aliases:  []string{"b"},
		Usage:    "Bot id",
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "knowbot",
		Usage: "Train website and document chatbots and ask them questions",
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
				Usage:   "Path to YAML configuration file",
				Value:   "knowbot.yaml",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides the configuration)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "bot",
				Usage: "Manage bots",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Create a bot",
						Action: botCreateCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "name",
								Aliases:  []string{"n"},
								Usage:    "Bot name",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "tone",
								Usage: "Answer style, e.g. \"friendly\"",
							},
							&cli.StringFlag{
								Name:  "fallback",
								Usage: "Message used when the content can't answer a question",
							},
							&cli.Float64Flag{
								Name:  "lead-threshold",
								Usage: "Answers below this confidence suggest contacting the business",
								Value: 0.5,
							},
							&cli.IntFlag{
								Name:  "max-pages",
								Usage: "Maximum pages crawled per website (0 uses the configured default)",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List bots",
						Action: botListCommand,
					},
				},
			},
			{
				Name:  "source",
				Usage: "Manage the content sources of a bot",
				Subcommands: []*cli.Command{
					{
						Name:   "add-url",
						Usage:  "Add a website to crawl",
						Action: sourceAddURLCommand,
						Flags: []cli.Flag{
							botFlag(),
							&cli.StringFlag{
								Name:     "url",
								Aliases:  []string{"u"},
								Usage:    "Start URL of the website",
								Required: true,
							},
						},
					},
					{
						Name:   "add-doc",
						Usage:  "Add a PDF, HTML, Markdown or text document",
						Action: sourceAddDocCommand,
						Flags: []cli.Flag{
							botFlag(),
							&cli.StringFlag{
								Name:     "path",
								Aliases:  []string{"p"},
								Usage:    "Local path or http(s) URL of the document",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "Display name (defaults to the file name)",
							},
							&cli.StringFlag{
								Name:  "mime-type",
								Usage: "MIME type (detected when omitted)",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List the sources of a bot",
						Action: sourceListCommand,
						Flags:  []cli.Flag{botFlag()},
					},
					{
						Name:   "retry",
						Usage:  "Queue a source for the next training run",
						Action: sourceRetryCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "id",
								Usage:    "Source id",
								Required: true,
							},
						},
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Create bots and their sources from a YAML manifest",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the manifest",
						Required: true,
					},
				},
			},
			{
				Name:   "train",
				Usage:  "Train bots, writing progress events to stdout as NDJSON",
				Action: trainCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "bot",
						Aliases:  []string{"b"},
						Usage:    "Bot id (repeat to train several bots in parallel)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Bots trained at once (0 uses the configured value)",
					},
				},
			},
			{
				Name:   "ask",
				Usage:  "Ask a bot a question",
				Action: askCommand,
				Flags: []cli.Flag{
					botFlag(),
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "The question",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Print the answer as it is generated",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every embedding of a bot with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					botFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: reembed.DefaultBatchSize,
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
				},
			},
		},
	}
}

// loadConfig reads the configuration named by the global flags.
func loadConfig(c *cli.Context) (*config.App, error) {
	app, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		app.Storage.Path = db
	}
	return app, nil
}

func openEngine(c *cli.Context, app *config.App) (*knowbot.Engine, error) {
	if app == nil {
		var err error
		if app, err = loadConfig(c); err != nil {
			return nil, err
		}
	}
	path := app.Storage.Path
	if app.Storage.InMemory {
		path = ""
	}
	engine, err := knowbot.Open(path, knowbot.WithConfig(app))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

func botCreateCommand(c *cli.Context) error {
	threshold := c.Float64("lead-threshold")
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("lead-threshold must be between 0 and 1")
	}
	if c.Int("max-pages") < 0 {
		return fmt.Errorf("max-pages cannot be negative")
	}

	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	bot, err := engine.CreateBot(c.Context, &core.Bot{
		Name:            c.String("name"),
		Tone:            c.String("tone"),
		FallbackMessage: c.String("fallback"),
		LeadThreshold:   threshold,
		MaxPages:        c.Int("max-pages"),
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	fmt.Fprintln(c.App.Writer, bot.Id)
	return nil
}

func botListCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	bots, err := engine.Bots().ListBots(c.Context)
	if err != nil {
		return err
	}
	for _, bot := range bots {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%d quick prompts\n", bot.Id, bot.Name, len(bot.QuickPrompts))
	}
	return nil
}

func sourceAddURLCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	source, err := engine.AddURLSource(c.Context, c.String("bot"), c.String("url"))
	if err != nil {
		return fmt.Errorf("failed to add website: %w", err)
	}
	fmt.Fprintln(c.App.Writer, source.Id)
	return nil
}

func sourceAddDocCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	source, err := engine.AddDocumentSource(c.Context, c.String("bot"), c.String("path"), c.String("name"), c.String("mime-type"))
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	fmt.Fprintln(c.App.Writer, source.Id)
	return nil
}

func sourceListCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	sources, err := engine.ListSources(c.Context, c.String("bot"))
	if err != nil {
		return err
	}
	printSources(c.App.Writer, sources)
	return nil
}

func printSources(w io.Writer, sources []*core.Source) {
	for _, s := range sources {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%d pages", s.Id, s.Kind, s.Status, s.Locator, s.PageCount)
		if s.Error != "" {
			line += "\t" + s.Error
		}
		fmt.Fprintln(w, line)
	}
}

func sourceRetryCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	source, err := engine.RetrySource(c.Context, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to retry source: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", source.Id, source.Status)
	return nil
}

// botEvent tags an event with its bot when several bots train at once.
type botEvent struct {
	BotID string         `json:"botId"`
	Event training.Event `json:"event"`
}

func trainCommand(c *cli.Context) error {
	botIDs := c.StringSlice("bot")
	if c.Int("workers") < 0 {
		return fmt.Errorf("workers cannot be negative")
	}

	app, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("workers"); n > 0 {
		app.Training.Workers = n
	}
	engine, err := openEngine(c, app)
	if err != nil {
		return err
	}
	defer engine.Close()

	if len(botIDs) == 1 {
		w := training.NewNDJSONWriter(c.App.Writer)
		_, err := engine.Train(c.Context, botIDs[0], w.Emit)
		if err != nil {
			return err
		}
		return w.Err()
	}

	var mu sync.Mutex
	enc := json.NewEncoder(c.App.Writer)
	enc.SetEscapeHTML(false)
	results, err := engine.TrainAll(c.Context, botIDs, func(botID string, ev training.Event) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(botEvent{BotID: botID, Event: ev}); err != nil {
			slog.Warn("failed to write event", "bot", botID, "err", err)
		}
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.BotID, r.Err)
		default:
			fmt.Fprintf(os.Stderr, "%s: %d chunks from %d pages, %d failed sources\n",
				r.BotID, r.Summary.ChunksCreated, r.Summary.PagesIndexed, r.Summary.Failed())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d bots could not be trained", failed, len(botIDs))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(c.String("question"))
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := c.App.Writer
	if !c.Bool("stream") {
		ans, err := engine.Answer(c.Context, c.String("bot"), question, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ans.Text)
		printAnswerFooter(os.Stderr, ans.Sources, ans.Confidence, ans.NeedsLead)
		return nil
	}

	ans, err := engine.AnswerStream(c.Context, c.String("bot"), question, nil, func(token string) error {
		_, err := io.WriteString(out, token)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	printAnswerFooter(os.Stderr, ans.Sources, ans.Confidence, ans.NeedsLead)
	return nil
}

func printAnswerFooter(w io.Writer, sources []string, confidence float64, needsLead bool) {
	fmt.Fprintf(w, "\nconfidence: %.2f\n", confidence)
	for _, s := range sources {
		fmt.Fprintf(w, "source: %s\n", s)
	}
	if needsLead {
		fmt.Fprintln(w, "low confidence: suggest contacting the business")
	}
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	app, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, app)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", app.Storage.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", app.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", app.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := engine.Reembed(c.Context, c.String("bot"), reembedConfig, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
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
