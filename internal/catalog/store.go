// Package catalog loads rule catalogs and resolves report parameters against them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// Store is the read side of a rule catalog.
type Store interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	GetCategory(ctx context.Context, id string) (*entity.Category, error)
}

type fileDoc struct {
	Categories []entity.Category `yaml:"categories"`
}

// Parse decodes a YAML catalog document and stamps every category with source.
func Parse(data []byte, source entity.CatalogSource) ([]entity.Category, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.NewAppError("CATALOG_ERROR", "decode yaml", errors.Join(common.ErrInvalidInput, err))
	}

	seen := make(map[string]struct{}, len(doc.Categories))
	for i := range doc.Categories {
		c := &doc.Categories[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("%w: category #%d needs id and name", common.ErrValidation, i+1)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category id %q", common.ErrValidation, c.ID)
		}
		seen[c.ID] = struct{}{}
		for j, e := range c.Entries {
			if strings.TrimSpace(e.ParameterName) == "" {
				return nil, fmt.Errorf("%w: category %q parameter #%d has no name", common.ErrValidation, c.ID, j+1)
			}
		}
		c.Source = source
	}
	return doc.Categories, nil
}

// LoadFile reads and parses a YAML catalog from disk.
func LoadFile(path string, source entity.CatalogSource) ([]entity.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewAppError("CATALOG_ERROR", "catalog "+path, errors.Join(common.ErrNotFound, err))
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data, source)
}

// MemoryStore serves a fixed list of categories.
type MemoryStore struct {
	categories []entity.Category
}

func NewMemoryStore(categories []entity.Category) *MemoryStore {
	return &MemoryStore{categories: categories}
}

// NewFileStore loads path once into a MemoryStore.
func NewFileStore(path string, source entity.CatalogSource) (*MemoryStore, error) {
	cats, err := LoadFile(path, source)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(cats), nil
}

func (s *MemoryStore) ListCategories(context.Context) ([]entity.Category, error) {
	out := make([]entity.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id string) (*entity.Category, error) {
	for _, c := range s.categories {
		if c.ID == id {
			cat := c
			return &cat, nil
		}
	}
	return nil, fmt.Errorf("category %q: %w", id, common.ErrNotFound)
}

// Composite chains stores: lists are concatenated, lookups stop at the first hit.
type Composite []Store

func (c Composite) ListCategories(ctx context.Context) ([]entity.Category, error) {
	var out []entity.Category
	for _, s := range c {
		cats, err := s.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, cats...)
	}
	return out, nil
}

func (c Composite) GetCategory(ctx context.Context, id string) (*entity.Category, error) {
	for _, s := range c {
		cat, err := s.GetCategory(ctx, id)
		if err == nil {
			return cat, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("category %q: %w", id, common.ErrNotFound)
}

// OfSource keeps only categories from the given source.
func OfSource(categories []entity.Category, source entity.CatalogSource) []entity.Category {
	out := make([]entity.Category, 0, len(categories))
	for _, c := range categories {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out
}
