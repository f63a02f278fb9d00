package main

import (
	"fmt"
	"os"

	"github.com/poiesic/knowbot/core"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// manifest provisions bots and their sources in one go.
type manifest struct {
	Bots []manifestBot `yaml:"bots"`
}

type manifestBot struct {
	Name          string             `yaml:"name"`
	Tone          string             `yaml:"tone"`
	Fallback      string             `yaml:"fallback"`
	LeadThreshold *float64           `yaml:"lead_threshold"`
	MaxPages      int                `yaml:"max_pages"`
	QuickPrompts  []string           `yaml:"quick_prompts"`
	Websites      []string           `yaml:"websites"`
	Documents     []manifestDocument `yaml:"documents"`
}

type manifestDocument struct {
	Path     string `yaml:"path"`
	Name     string `yaml:"name"`
	MimeType string `yaml:"mime_type"`
}

const defaultLeadThreshold = 0.5

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.Bots) == 0 {
		return nil, fmt.Errorf("manifest %s defines no bots", path)
	}
	return &m, nil
}

func importCommand(c *cli.Context) error {
	m, err := readManifest(c.String("file"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := c.Context
	for _, entry := range m.Bots {
		threshold := defaultLeadThreshold
		if entry.LeadThreshold != nil {
			threshold = *entry.LeadThreshold
		}
		bot, err := engine.CreateBot(ctx, &core.Bot{
			Name:            entry.Name,
			Tone:            entry.Tone,
			FallbackMessage: entry.Fallback,
			LeadThreshold:   threshold,
			MaxPages:        entry.MaxPages,
			QuickPrompts:    entry.QuickPrompts,
		})
		if err != nil {
			return fmt.Errorf("failed to create bot %q: %w", entry.Name, err)
		}

		for _, site := range entry.Websites {
			if _, err := engine.AddURLSource(ctx, bot.Id, site); err != nil {
				return fmt.Errorf("bot %q: failed to add website %s: %w", entry.Name, site, err)
			}
		}
		for _, doc := range entry.Documents {
			if _, err := engine.AddDocumentSource(ctx, bot.Id, doc.Path, doc.Name, doc.MimeType); err != nil {
				return fmt.Errorf("bot %q: failed to add document %s: %w", entry.Name, doc.Path, err)
			}
		}

		fmt.Fprintf(c.App.Writer, "%s\t%s\n", bot.Id, bot.Name)
		fmt.Fprintf(os.Stderr, "%s: %d websites, %d documents\n", bot.Name, len(entry.Websites), len(entry.Documents))
	}
	return nil
}
