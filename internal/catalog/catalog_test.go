package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Listeria monocytogenes", "listeria monocytogenes"},
		{"  Listeria   MONOCYTOGENES (UFC/g) ", "listeria monocytogenes ufc g"},
		{"Enterobatteriacee", "enterobatteriacee"},
		{"Stafilococchi coagulasi-positivi", "stafilococchi coagulasi positivi"},
		{"Conta à 30°C", "conta a 30 c"},
		{"Salmonella spp.", "salmonella spp"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

const sampleYAML = `
categories:
  - id: a
    name: Gelati
    parameters:
      - parameter: Enterobatteriacee
        limits:
          satisfactory: "< 10 (UFC/g)"
          unsatisfactory: "≥ 100 (UFC/g)"
  - id: b
    name: Carni
    parameters:
      - parameter: Salmonella spp.
        limits:
          satisfactory: Assente in 10 g
`

func TestParse(t *testing.T) {
	cats, err := Parse([]byte(sampleYAML), entity.SourceRegulatory)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "a", cats[0].ID)
	assert.Equal(t, entity.SourceRegulatory, cats[0].Source)
	require.Len(t, cats[0].Entries, 1)
	assert.Equal(t, "Enterobatteriacee", cats[0].Entries[0].ParameterName)
	assert.Equal(t, "< 10 (UFC/g)", cats[0].Entries[0].Limits.Satisfactory)
	assert.Equal(t, "Assente in 10 g", cats[1].Entries[0].Limits.Satisfactory)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad yaml", "categories: [", common.ErrInvalidInput},
		{"missing name", "categories:\n  - id: x\n", common.ErrValidation},
		{"duplicate id", "categories:\n  - {id: x, name: A}\n  - {id: x, name: B}\n", common.ErrValidation},
		{"nameless parameter", "categories:\n  - id: x\n    name: A\n    parameters:\n      - limits: {satisfactory: '< 1'}\n", common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), entity.SourceCustom)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), entity.SourceRegulatory)
	assert.ErrorIs(t, err, common.ErrNotFound)

	path := filepath.Join(t.TempDir(), "cat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	store, err := NewFileStore(path, entity.SourceRegulatory)
	require.NoError(t, err)

	cat, err := store.GetCategory(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "Carni", cat.Name)

	_, err = store.GetCategory(context.Background(), "zzz")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestShippedRegulatoryCatalogParses(t *testing.T) {
	cats, err := LoadFile(filepath.Join("..", "..", "catalog", "regulatory.yaml"), entity.SourceRegulatory)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

type countingStore struct {
	*MemoryStore
	lists int
}

func (s *countingStore) ListCategories(ctx context.Context) ([]entity.Category, error) {
	s.lists++
	return s.MemoryStore.ListCategories(ctx)
}

func TestCompositeAndCatalogCache(t *testing.T) {
	reg := NewMemoryStore([]entity.Category{{ID: "r1", Name: "Reg", Source: entity.SourceRegulatory}})
	custom := &countingStore{MemoryStore: NewMemoryStore([]entity.Category{{ID: "c1", Name: "Mine", Source: entity.SourceCustom}})}
	cache := NewCatalogCache(Composite{reg, custom})
	ctx := context.Background()

	list, err := cache.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, OfSource(list, entity.SourceCustom), 1)

	_, err = cache.ListCategories(ctx)
	require.NoError(t, err)
	c, err := cache.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Mine", c.Name)
	assert.Equal(t, 1, custom.lists, "served from cache")

	cache.Invalidate()
	_, err = cache.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, custom.lists)

	_, err = cache.GetCategory(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMatchCacheConcurrent(t *testing.T) {
	c := NewMatchCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put("a", "b", i%2 == 0)
			c.Get("a", "b")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
	hits, misses := c.Stats()
	assert.Equal(t, uint64(50), hits+misses)

	_, ok := c.Get("b", "a")
	assert.False(t, ok, "key is the ordered pair")
}

func category(source entity.CatalogSource, names ...string) *entity.Category {
	c := &entity.Category{ID: "cat", Name: "Cat", Source: source}
	for _, n := range names {
		c.Entries = append(c.Entries, entity.CatalogEntry{ParameterName: n})
	}
	return c
}

func readings(names ...string) []entity.ParameterReading {
	out := make([]entity.ParameterReading, 0, len(names))
	for _, n := range names {
		out = append(out, entity.ParameterReading{ParameterName: n, ResultText: "< 10"})
	}
	return out
}

func TestResolveExactAndSubstring(t *testing.T) {
	r := NewResolver(nil, nil)
	cat := category(entity.SourceRegulatory, "Listeria monocytogenes", "Enterobatteriacee", "Muffe")

	got := r.Resolve(context.Background(), readings(
		"LISTERIA MONOCYTOGENES",
		"Enterobatteriacee totali",
		"Muffe e lieviti",
		"Salmonella",
	), cat)
	require.Len(t, got, 4)

	assert.Equal(t, MatchedExact, got[0].MatchedBy)
	assert.Equal(t, "Listeria monocytogenes", got[0].Entry.ParameterName)

	assert.Equal(t, MatchedSubstring, got[1].MatchedBy)
	assert.Equal(t, "Enterobatteriacee", got[1].Entry.ParameterName)

	assert.False(t, got[2].Matched(), "\"muffe\" is shorter than the regulatory minimum")
	assert.False(t, got[3].Matched())
	assert.Equal(t, []string{"Muffe e lieviti", "Salmonella"}, UnmatchedNames(got))
}

func TestResolveSubstringCustomMinimum(t *testing.T) {
	r := NewResolver(nil, nil)
	got := r.Resolve(context.Background(), readings("Muffe e lieviti"), category(entity.SourceCustom, "Muffe"))
	require.Len(t, got, 1)
	assert.True(t, got[0].Matched())
	assert.Equal(t, MatchedSubstring, got[0].MatchedBy)
}

func TestResolveFirstEntryWins(t *testing.T) {
	r := NewResolver(nil, nil)
	cat := category(entity.SourceRegulatory, "Conta Escherichia coli", "Escherichia coli totali")
	got := r.Resolve(context.Background(), readings("Escherichia coli"), cat)
	assert.Equal(t, "Conta Escherichia coli", got[0].Entry.ParameterName)
}

func TestResolveNilCategory(t *testing.T) {
	got := NewResolver(nil, nil).Resolve(context.Background(), readings("a", "b"), nil)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, UnmatchedNames(got))
}

func TestResolveSemanticMemoized(t *testing.T) {
	calls := 0
	cls := llm.ClassifierFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		if strings.Contains(prompt, "coliformi") && strings.Contains(prompt, "coliform bacteria") {
			return "Yes.", nil
		}
		return "no", nil
	})
	cache := NewMatchCache()
	r := NewResolver(cls, cache)
	cat := category(entity.SourceRegulatory, "Stafilococchi", "Coliform bacteria")

	got := r.Resolve(context.Background(), readings("Coliformi", "Coliformi"), cat)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, MatchedSemantic, m.MatchedBy)
		assert.Equal(t, "Coliform bacteria", m.Entry.ParameterName)
	}
	assert.Equal(t, 2, calls, "second reading served from the cache")
	assert.Equal(t, 2, cache.Len())
}

func TestResolveSemanticErrorsNotMemoized(t *testing.T) {
	calls := 0
	cls := llm.ClassifierFunc(func(context.Context, string) (string, error) {
		calls++
		return "", common.CapabilityError("classify", errors.New("down"))
	})
	cache := NewMatchCache()
	r := NewResolver(cls, cache)
	cat := category(entity.SourceRegulatory, "Coliform bacteria")

	got := r.Resolve(context.Background(), readings("Coliformi", "Coliformi"), cat)
	assert.False(t, got[0].Matched())
	assert.False(t, got[1].Matched())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Len())
}

func TestParseYes(t *testing.T) {
	for in, want := range map[string]bool{
		"yes": true, "Yes.": true, "YES, same analyte": true, "sì": true,
		"no": false, "No.": false, "yesterday": false, "": false,
	} {
		assert.Equal(t, want, parseYes(in), in)
	}
}
