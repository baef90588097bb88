package catalog

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
)

const (
	MatchedExact     = "exact"
	MatchedSubstring = "substring"
	MatchedSemantic  = "semantic"
)

// Minimum normalized length of the shorter name for a containment match.
const (
	minSubstringRegulatory = 10
	minSubstringCustom     = 5
)

// Match pairs a reading with the catalog entry it resolved to. Entry is nil when unmatched.
type Match struct {
	Reading   entity.ParameterReading
	Entry     *entity.CatalogEntry
	MatchedBy string
}

func (m Match) Matched() bool { return m.Entry != nil }

// UnmatchedNames lists the parameter names of unmatched readings, in order.
func UnmatchedNames(matches []Match) []string {
	var out []string
	for _, m := range matches {
		if !m.Matched() {
			out = append(out, m.Reading.ParameterName)
		}
	}
	return out
}

type normEntry struct {
	entry *entity.CatalogEntry
	norm  string
}

type matchStrategy interface {
	name() string
	match(ctx context.Context, reading string, entries []normEntry, source entity.CatalogSource) *entity.CatalogEntry
}

// Resolver maps readings onto the entries of one category.
type Resolver struct {
	strategies []matchStrategy
	logger     *slog.Logger
}

type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(o *resolverOptions) { o.logger = l }
}

func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(o *resolverOptions) { o.metrics = m }
}

// NewResolver builds the exact → substring → semantic chain. The semantic step
// is skipped when classifier is nil. cache may be shared between resolvers.
func NewResolver(classifier llm.Classifier, cache *MatchCache, opts ...ResolverOption) *Resolver {
	o := resolverOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if cache == nil {
		cache = NewMatchCache()
	}

	strategies := []matchStrategy{exactStrategy{}, substringStrategy{}}
	if classifier != nil {
		strategies = append(strategies, &semanticStrategy{
			classifier: classifier,
			cache:      cache,
			metrics:    o.metrics,
			logger:     o.logger,
		})
	}
	return &Resolver{strategies: strategies, logger: o.logger}
}

// Resolve returns one Match per reading, in extraction order. A nil category
// yields all-unmatched results. Never returns an error.
func (r *Resolver) Resolve(ctx context.Context, readings []entity.ParameterReading, category *entity.Category) []Match {
	out := make([]Match, 0, len(readings))
	if category == nil {
		for _, rd := range readings {
			out = append(out, Match{Reading: rd})
		}
		return out
	}

	entries := make([]normEntry, 0, len(category.Entries))
	for i := range category.Entries {
		entries = append(entries, normEntry{
			entry: &category.Entries[i],
			norm:  NormalizeName(category.Entries[i].ParameterName),
		})
	}

	for _, rd := range readings {
		m := Match{Reading: rd}
		name := NormalizeName(rd.ParameterName)
		if name != "" {
			for _, s := range r.strategies {
				if e := s.match(ctx, name, entries, category.Source); e != nil {
					m.Entry = e
					m.MatchedBy = s.name()
					break
				}
			}
		}
		if m.Matched() {
			r.logger.Debug("catalog.resolve.matched",
				"parameter", rd.ParameterName,
				"entry", m.Entry.ParameterName,
				"by", m.MatchedBy,
				"category_id", category.ID,
			)
		} else {
			r.logger.Info("catalog.resolve.unmatched", "parameter", rd.ParameterName, "category_id", category.ID)
		}
		out = append(out, m)
	}
	return out
}

type exactStrategy struct{}

func (exactStrategy) name() string { return MatchedExact }

func (exactStrategy) match(_ context.Context, reading string, entries []normEntry, _ entity.CatalogSource) *entity.CatalogEntry {
	for _, e := range entries {
		if e.norm == reading {
			return e.entry
		}
	}
	return nil
}

type substringStrategy struct{}

func (substringStrategy) name() string { return MatchedSubstring }

func (substringStrategy) match(_ context.Context, reading string, entries []normEntry, source entity.CatalogSource) *entity.CatalogEntry {
	minLen := minSubstringRegulatory
	if source == entity.SourceCustom {
		minLen = minSubstringCustom
	}
	for _, e := range entries {
		if e.norm == "" {
			continue
		}
		shorter, longer := reading, e.norm
		if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
			shorter, longer = longer, shorter
		}
		if utf8.RuneCountInString(shorter) < minLen {
			continue
		}
		if strings.Contains(longer, shorter) {
			return e.entry
		}
	}
	return nil
}

type semanticStrategy struct {
	classifier llm.Classifier
	cache      *MatchCache
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func (*semanticStrategy) name() string { return MatchedSemantic }

func (s *semanticStrategy) match(ctx context.Context, reading string, entries []normEntry, _ entity.CatalogSource) *entity.CatalogEntry {
	for _, e := range entries {
		if e.norm == "" {
			continue
		}
		if s.equivalent(ctx, reading, e.norm) {
			return e.entry
		}
	}
	return nil
}

func (s *semanticStrategy) equivalent(ctx context.Context, a, b string) bool {
	if v, ok := s.cache.Get(a, b); ok {
		s.metrics.MatchCacheLookup(true)
		return v
	}
	s.metrics.MatchCacheLookup(false)

	reply, err := s.classifier.Classify(ctx, llm.BuildEquivalencePrompt(a, b))
	if err != nil {
		s.logger.Warn("catalog.semantic.failed", "a", a, "b", b, "error", err)
		return false
	}
	v := parseYes(reply)
	s.cache.Put(a, b, v)
	return v
}

func parseYes(reply string) bool {
	r := strings.ToLower(strings.TrimSpace(reply))
	r = strings.Trim(r, "\"'.` ")
	for _, p := range []string{"yes", "sì", "si", "true"} {
		if r == p || strings.HasPrefix(r, p+" ") || strings.HasPrefix(r, p+",") || strings.HasPrefix(r, p+".") {
			return true
		}
	}
	return false
}
