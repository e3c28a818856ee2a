// Package content holds the static question tables and avatars shipped with the game.
package content

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"learnearn/internal/domain"
)

// BattleKey is the category key of the battle question pool.
const BattleKey = "battle"

// DefaultCategory is used when a requested language is unknown.
const DefaultCategory = "English"

//go:embed content.yaml
var builtin []byte

type document struct {
	Categories []domain.Category        `yaml:"categories"`
	Avatars    []domain.Avatar          `yaml:"avatars"`
	Facts      map[string][]domain.Fact `yaml:"facts"`
}

// Table is an immutable set of categories and avatars.
type Table struct {
	order      []string
	categories map[string]domain.Category
	avatars    []domain.Avatar
	facts      map[string][]domain.Fact
}

// Builtin parses the embedded content. It panics on malformed content since
// the file ships with the binary.
func Builtin() *Table {
	t, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("content: builtin table: %v", err))
	}
	return t
}

// Parse decodes and validates a YAML content document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	t := &Table{
		categories: make(map[string]domain.Category, len(doc.Categories)),
		avatars:    doc.Avatars,
		facts:      doc.Facts,
	}
	for _, c := range doc.Categories {
		if c.Key == "" {
			return nil, fmt.Errorf("category without key")
		}
		if _, dup := t.categories[c.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Key)
		}
		for _, q := range c.Questions {
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("category %q: %w", c.Key, err)
			}
		}
		t.order = append(t.order, c.Key)
		t.categories[c.Key] = c
	}
	for key := range doc.Facts {
		if _, ok := t.categories[key]; !ok {
			return nil, fmt.Errorf("facts for unknown category %q", key)
		}
	}
	return t, nil
}

// LoadCategory returns a copy of the category so callers cannot mutate the table.
func (t *Table) LoadCategory(_ context.Context, key string) (domain.Category, error) {
	c, ok := t.categories[key]
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, key)
	}
	return Clone(c), nil
}

// Languages lists the quiz categories in table order, excluding the battle pool.
func (t *Table) Languages() []string {
	keys := make([]string, 0, len(t.order))
	for _, k := range t.order {
		if k != BattleKey {
			keys = append(keys, k)
		}
	}
	return keys
}

// Categories returns copies of every category in table order.
func (t *Table) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Clone(t.categories[k]))
	}
	return out
}

// Facts returns the learning hub facts for a language.
func (t *Table) Facts(key string) ([]domain.Fact, error) {
	facts, ok := t.facts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, key)
	}
	return append([]domain.Fact(nil), facts...), nil
}

// Avatars returns the selectable avatars.
func (t *Table) Avatars() []domain.Avatar {
	return append([]domain.Avatar(nil), t.avatars...)
}

// Clone deep-copies a category.
func Clone(c domain.Category) domain.Category {
	questions := make([]domain.Question, len(c.Questions))
	for i, q := range c.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	return domain.Category{Key: c.Key, Questions: questions}
}

// Loader fetches one question table.
type Loader interface {
	LoadCategory(ctx context.Context, key string) (domain.Category, error)
}

// Fallback serves categories from Primary and asks Secondary for keys
// Primary does not have, e.g. a Postgres table that was never seeded.
type Fallback struct {
	Primary   Loader
	Secondary Loader
}

func (f Fallback) LoadCategory(ctx context.Context, key string) (domain.Category, error) {
	c, err := f.Primary.LoadCategory(ctx, key)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		return f.Secondary.LoadCategory(ctx, key)
	}
	return c, err
}

// MergeLanguages lists the languages served by a Fallback whose primary holds
// primary keys: primary order first, then the remaining fallback languages.
// The battle pool key is never listed.
func MergeLanguages(primary, fallback []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(fallback))
	out := make([]string, 0, len(primary)+len(fallback))
	for _, list := range [][]string{primary, fallback} {
		for _, k := range list {
			if _, dup := seen[k]; dup || k == BattleKey {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
