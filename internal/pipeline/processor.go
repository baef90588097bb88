package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/classify"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/decision"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/extract"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
	"github.com/joseph-ayodele/lab-compliance/internal/readings"
	"github.com/joseph-ayodele/lab-compliance/internal/recovery"
)

// Stages are the collaborators a Processor runs in order. Custom and Metrics may be nil.
type Stages struct {
	Extractor  extract.TextExtractor
	Recovery   *recovery.Stage
	Classifier *classify.Classifier
	Readings   *readings.Extractor
	Resolver   *catalog.Resolver
	Decisions  *decision.Service
	Regulatory catalog.Store
	Custom     catalog.Store
	Metrics    *metrics.Metrics
}

// Request identifies one run of the pipeline over one file.
type Request struct {
	JobID    uuid.UUID
	ResultID uuid.UUID
	Path     string
	FileName string
	Options  entity.JobOptions
}

// ProgressFunc receives milestone updates. Failures to record progress are the callee's concern.
type ProgressFunc func(ctx context.Context, percent int, stage string)

// Processor coordinates extraction, recovery, classification, reading
// extraction, parameter resolution and the decision stage. It has no
// persistence side effects.
type Processor struct {
	stages Stages
	logger *slog.Logger
}

func NewProcessor(stages Stages, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if stages.Regulatory == nil {
		stages.Regulatory = catalog.NewMemoryStore(nil)
	}
	if stages.Recovery == nil {
		stages.Recovery = recovery.NewStage(nil, logger)
	}
	if stages.Classifier == nil {
		stages.Classifier = classify.New(nil, logger)
	}
	if stages.Readings == nil {
		stages.Readings = readings.NewExtractor(nil, logger)
	}
	if stages.Resolver == nil {
		stages.Resolver = catalog.NewResolver(nil, nil, catalog.WithResolverLogger(logger))
	}
	if stages.Decisions == nil {
		stages.Decisions = decision.NewService(nil, nil, stages.Metrics, logger)
	}
	return &Processor{stages: stages, logger: logger}
}

// Process runs every stage over req.Path and returns a successful result record.
// Errors wrap common.ErrNotFound / ErrInvalidInput when retrying cannot help.
func (p *Processor) Process(ctx context.Context, req Request, progress ProgressFunc) (*entity.ResultRecord, error) {
	if progress == nil {
		progress = func(context.Context, int, string) {}
	}
	log := p.logger.With("job_id", req.JobID, "file", req.FileName)
	started := time.Now()

	if p.stages.Extractor == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "no text extractor configured", common.ErrInvalidInput)
	}
	fragments, err := p.stages.Extractor.ExtractText(ctx, req.Path)
	if err != nil {
		log.Error("pipeline.extract.failed", "err", err)
		return nil, err
	}

	outcome := p.stages.Recovery.Run(ctx, req.Path, fragments, req.Options.ForceRecovery)
	p.stages.Metrics.Recovery(outcome.Method)
	log.Info("pipeline.extract.ok",
		"fragments", len(outcome.Fragments),
		"chars", len(outcome.Text),
		"method", outcome.Method,
		"used_recovery", outcome.UsedRecovery,
	)
	progress(ctx, constants.ProgressExtracted, constants.StageExtracted)

	categories, err := p.stages.Regulatory.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regulatory categories: %w", err)
	}
	profile := p.stages.Classifier.Classify(ctx, outcome.Text, categories)

	found, err := p.stages.Readings.Extract(ctx, outcome.Text)
	if err != nil {
		log.Error("pipeline.readings.failed", "err", err)
		return nil, err
	}
	log.Info("pipeline.classify.ok",
		"sample_kind", profile.Kind,
		"product", profile.ProductLabel,
		"category_id", deref(profile.RegulatoryCategoryID),
		"readings", len(found),
	)
	progress(ctx, constants.ProgressClassified, constants.StageClassified)

	category, err := p.ruleSet(ctx, req.Options, profile)
	if err != nil {
		log.Error("pipeline.category.failed", "err", err)
		return nil, err
	}
	categoryID := ""
	if category != nil {
		categoryID = category.ID
	}
	matches := p.stages.Resolver.Resolve(ctx, found, category)
	verdicts := p.stages.Decisions.Verdicts(ctx, matches, categoryID)
	unmatched := catalog.UnmatchedNames(matches)
	log.Info("pipeline.decision.ok",
		"category_id", categoryID,
		"verdicts", len(verdicts),
		"unmatched", len(unmatched),
	)
	progress(ctx, constants.ProgressDecided, constants.StageDecided)

	if found == nil {
		found = []entity.ParameterReading{}
	}
	now := time.Now().UTC()
	rec := &entity.ResultRecord{
		ID:                  req.ResultID,
		JobID:               req.JobID,
		FileName:            req.FileName,
		Success:             true,
		EffectiveText:       outcome.Text,
		UsedRecovery:        outcome.UsedRecovery,
		RecoveryMethod:      outcome.Method,
		Profile:             profile,
		CategoryID:          categoryID,
		Readings:            found,
		Verdicts:            verdicts,
		UnmatchedParameters: unmatched,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	log.Debug("pipeline.done", "elapsed", time.Since(started))
	return rec, nil
}

// ruleSet picks the custom category named in the options, else the
// regulatory category the classifier chose. No category means no verdicts.
func (p *Processor) ruleSet(ctx context.Context, opts entity.JobOptions, profile entity.SampleProfile) (*entity.Category, error) {
	if opts.CustomCategoryID != "" {
		if p.stages.Custom == nil {
			return nil, common.NewAppError("NOT_FOUND", "custom categories are not available", common.ErrNotFound)
		}
		return p.stages.Custom.GetCategory(ctx, opts.CustomCategoryID)
	}
	if profile.RegulatoryCategoryID == nil {
		return nil, nil
	}
	c, err := p.stages.Regulatory.GetCategory(ctx, *profile.RegulatoryCategoryID)
	if errors.Is(err, common.ErrNotFound) {
		p.logger.Warn("pipeline.category.vanished", "category_id", *profile.RegulatoryCategoryID)
		return nil, nil
	}
	return c, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
