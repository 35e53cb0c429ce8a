package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
)

// Seed is the YAML layout of a seed file.
type Seed struct {
	Platforms []string       `yaml:"platforms"`
	Tools     []SeedTool     `yaml:"tools"`
	Pipelines []SeedPipeline `yaml:"pipelines"`
}

// SeedTool is one catalog entry in a seed file.
type SeedTool struct {
	Name      string  `yaml:"name"`
	Version   string  `yaml:"version"`
	ImagePath string  `yaml:"image_path"`
	Stage     string  `yaml:"stage"`
	Target    float64 `yaml:"target"`
	Analytics float64 `yaml:"analytics"`
}

// SeedPipeline is one stored fragment in a seed file.
type SeedPipeline struct {
	Tool     string `yaml:"tool"`
	Platform string `yaml:"platform"`
	Stage    string `yaml:"stage"`
	Language string `yaml:"language"`
	YAML     string `yaml:"yaml"`
}

// SeedCounts reports what LoadSeed inserted.
type SeedCounts struct {
	Platforms int
	Tools     int
	Pipelines int
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// LoadSeed reads path and inserts its contents into repo. Records that
// already exist are skipped.
func LoadSeed(ctx context.Context, repo Repository, path string) (SeedCounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedCounts{}, fmt.Errorf("read seed: %w", err)
	}
	s, err := ParseSeed(data)
	if err != nil {
		return SeedCounts{}, err
	}
	return Apply(ctx, repo, s)
}

// Apply inserts s into repo.
func Apply(ctx context.Context, repo Repository, s *Seed) (SeedCounts, error) {
	var n SeedCounts
	for _, name := range s.Platforms {
		if _, err := repo.CreatePlatform(ctx, Platform{Name: name}); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return n, err
		}
		n.Platforms++
	}
	for _, t := range s.Tools {
		_, err := repo.CreateTool(ctx, catalog.Tool{
			Name:      t.Name,
			Version:   t.Version,
			ImagePath: t.ImagePath,
			Config:    catalog.ToolConfig{Type: t.Stage, Target: t.Target, Analytics: t.Analytics},
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return n, err
		}
		n.Tools++
	}
	for _, p := range s.Pipelines {
		content := p.YAML
		_, err := repo.CreatePipeline(ctx, compose.Record{
			Tool:        p.Tool,
			Platform:    p.Platform,
			Stage:       p.Stage,
			Language:    p.Language,
			YAMLContent: &content,
		})
		if err != nil {
			return n, err
		}
		n.Pipelines++
	}
	return n, nil
}
