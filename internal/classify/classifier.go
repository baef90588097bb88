// Package classify infers the sample profile of a report and the regulatory
// category it falls under.
package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
)

// Classifier never fails: every degraded path ends in a valid profile.
type Classifier struct {
	semantic   llm.Classifier
	strategies []categoryStrategy
	logger     *slog.Logger
}

// New builds a classifier. semantic may be nil, which disables the profile
// fallback and the semantic category strategy.
func New(semantic llm.Classifier, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	strategies := []categoryStrategy{substringStrategy{}}
	if semantic != nil {
		strategies = append(strategies, &semanticStrategy{classifier: semantic, logger: logger})
	}
	return &Classifier{semantic: semantic, strategies: strategies, logger: logger}
}

// Classify infers the profile of corpus. categories are the regulatory candidates.
func (c *Classifier) Classify(ctx context.Context, corpus string, categories []entity.Category) entity.SampleProfile {
	if strings.TrimSpace(corpus) == "" {
		c.logger.Info("classify.empty_corpus")
		return entity.DefaultProfile().Enforce()
	}

	profile := entity.SampleProfile{
		Kind:         inferKind(corpus),
		ProductLabel: inferProduct(corpus),
		SpecialTags:  inferTags(corpus),
	}

	if profile.Kind == "" && profile.ProductLabel == "" {
		fromModel, ok := c.profileFallback(ctx, corpus)
		if !ok {
			c.logger.Info("classify.default_profile")
			return entity.DefaultProfile().Enforce()
		}
		fromModel.SpecialTags = profile.SpecialTags
		profile = fromModel
	}
	if profile.Kind == "" {
		profile.Kind = constants.SampleFoodItem
	}

	if profile.Kind.IsSwab() {
		c.logger.Info("classify.swab", "kind", profile.Kind, "product", profile.ProductLabel)
		return profile.Enforce()
	}

	for _, s := range c.strategies {
		cat := s.pick(ctx, profile, categories)
		if cat == nil {
			continue
		}
		id := cat.ID
		profile.RegulatoryCategoryID = &id
		c.logger.Info("classify.category",
			"kind", profile.Kind,
			"product", profile.ProductLabel,
			"category_id", id,
			"by", s.name(),
		)
		break
	}
	if profile.RegulatoryCategoryID == nil {
		c.logger.Info("classify.no_category", "kind", profile.Kind, "product", profile.ProductLabel)
	}
	return profile.Enforce()
}

type profileReply struct {
	SampleKind  string `json:"sample_kind"`
	Product     string `json:"product"`
	Description string `json:"description"`
}

func (c *Classifier) profileFallback(ctx context.Context, corpus string) (entity.SampleProfile, bool) {
	if c.semantic == nil {
		return entity.SampleProfile{}, false
	}
	reply, err := c.semantic.Classify(ctx, llm.BuildProfilePrompt(corpus))
	if err != nil {
		c.logger.Warn("classify.profile.failed", "error", err)
		return entity.SampleProfile{}, false
	}
	raw := llm.ExtractJSON(reply)
	if raw == "" {
		c.logger.Warn("classify.profile.no_json", "reply_len", len(reply))
		return entity.SampleProfile{}, false
	}
	if err := llm.ValidateJSONAgainstSchema(llm.ProfileJSONSchema(), []byte(raw)); err != nil {
		c.logger.Warn("classify.profile.invalid", "error", err)
		return entity.SampleProfile{}, false
	}
	var pr profileReply
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		c.logger.Warn("classify.profile.decode", "error", err)
		return entity.SampleProfile{}, false
	}

	kind, known := constants.CanonicalizeSampleKind(pr.SampleKind)
	if !known {
		c.logger.Warn("classify.profile.unknown_kind", "sample_kind", pr.SampleKind)
	}
	return entity.SampleProfile{
		Kind:         kind,
		ProductLabel: strings.TrimSpace(pr.Product),
		Description:  strings.TrimSpace(pr.Description),
	}, true
}

type categoryStrategy interface {
	name() string
	pick(ctx context.Context, profile entity.SampleProfile, categories []entity.Category) *entity.Category
}

// minTermRunes keeps tiny product words from matching every category name.
const minTermRunes = 4

type substringStrategy struct{}

func (substringStrategy) name() string { return "substring" }

func (substringStrategy) pick(_ context.Context, profile entity.SampleProfile, categories []entity.Category) *entity.Category {
	terms := make([]string, 0, 2)
	for _, t := range []string{profile.ProductLabel, profile.Description} {
		if n := catalog.NormalizeName(t); len([]rune(n)) >= minTermRunes {
			terms = append(terms, n)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	for i := range categories {
		name := catalog.NormalizeName(categories[i].Name)
		if name == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(name, term) || strings.Contains(term, name) {
				return &categories[i]
			}
		}
	}
	return nil
}

type semanticStrategy struct {
	classifier llm.Classifier
	logger     *slog.Logger
}

func (*semanticStrategy) name() string { return "semantic" }

func (s *semanticStrategy) pick(ctx context.Context, profile entity.SampleProfile, categories []entity.Category) *entity.Category {
	if len(categories) == 0 || (profile.ProductLabel == "" && profile.Description == "") {
		return nil
	}
	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.Name
	}
	reply, err := s.classifier.Classify(ctx, llm.BuildCategoryPrompt(profile.ProductLabel, profile.Description, names))
	if err != nil {
		s.logger.Warn("classify.category.semantic_failed", "error", err)
		return nil
	}
	idx := parseCandidate(reply, names)
	if idx < 0 {
		return nil
	}
	return &categories[idx]
}

// parseCandidate reads a 1-based index or a literal candidate name. -1 means none.
func parseCandidate(reply string, names []string) int {
	r := strings.TrimSpace(reply)
	r = strings.Trim(r, "\"'`.* ")
	if r == "" || strings.EqualFold(r, llm.NoneAnswer) {
		return -1
	}
	if n, err := strconv.Atoi(r); err == nil {
		if n >= 1 && n <= len(names) {
			return n - 1
		}
		return -1
	}
	for i, name := range names {
		if strings.EqualFold(r, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}
