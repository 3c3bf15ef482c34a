// Package catalog loads the reward catalog from YAML and seeds it into a
// store.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/atomickids/internal/model"
)

//go:embed default.yaml
var defaultCatalog []byte

// Entry is one reward as written in a catalog file.
type Entry struct {
	Name              string `yaml:"name"`
	StreakRequirement int    `yaml:"streak_requirement"`
	ImageURL          string `yaml:"image_url"`
}

type file struct {
	Rewards []Entry `yaml:"rewards"`
}

// Upserter stores a reward keyed by name.
type Upserter interface {
	UpsertReward(ctx context.Context, name string, streakRequirement int, imageURL string) (*model.Reward, error)
}

// Default returns the built-in catalog.
func Default() []Entry {
	entries, err := Parse(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return entries
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog. Unknown keys are rejected.
func Parse(r io.Reader) ([]Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Rewards))
	for i, e := range doc.Rewards {
		if e.Name == "" {
			return nil, fmt.Errorf("reward %d: name is required", i)
		}
		if e.StreakRequirement < 0 {
			return nil, fmt.Errorf("reward %q: negative streak requirement", e.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("reward %q: duplicate name", e.Name)
		}
		seen[e.Name] = true
	}

	slices.SortStableFunc(doc.Rewards, func(a, b Entry) int {
		return a.StreakRequirement - b.StreakRequirement
	})
	return doc.Rewards, nil
}

// Seed upserts every entry and returns the stored rewards.
func Seed(ctx context.Context, u Upserter, entries []Entry) ([]model.Reward, error) {
	out := make([]model.Reward, 0, len(entries))
	for _, e := range entries {
		r, err := u.UpsertReward(ctx, e.Name, e.StreakRequirement, e.ImageURL)
		if err != nil {
			return out, fmt.Errorf("seed reward %q: %w", e.Name, err)
		}
		out = append(out, *r)
	}
	return out, nil
}
