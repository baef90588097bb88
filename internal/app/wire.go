// Package app assembles the pipeline from configuration for both binaries.
package app

import (
	"log/slog"

	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/classify"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/decision"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/extract"
	"github.com/joseph-ayodele/lab-compliance/internal/llm/provider"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
	"github.com/joseph-ayodele/lab-compliance/internal/ocr"
	"github.com/joseph-ayodele/lab-compliance/internal/pipeline"
	"github.com/joseph-ayodele/lab-compliance/internal/readings"
	"github.com/joseph-ayodele/lab-compliance/internal/recovery"
)

// Pipeline is the assembled processor plus the shared caches it was built with.
type Pipeline struct {
	Processor  *pipeline.Processor
	Regulatory *catalog.CatalogCache
	MatchCache *catalog.MatchCache
}

// BuildPipeline wires extraction, recovery, classification, reading
// extraction, resolution and decisions. custom and m may be nil.
func BuildPipeline(cfg *common.Config, custom catalog.Store, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	semantic, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	store, err := catalog.NewFileStore(cfg.Catalog.RegulatoryPath, entity.SourceRegulatory)
	if err != nil {
		return nil, err
	}
	regulatory := catalog.NewCatalogCache(store)

	tools := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.Lang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)

	var text extract.TextExtractor
	switch cfg.OCR.TextExtractor {
	case "pdftotext":
		text = tools
	default:
		text = extract.Fallback{Primary: extract.NewPDFLibExtractor(logger), Secondary: tools, Logger: logger}
	}
	text = extract.WithTimeout(text, cfg.Pipeline.CapabilityTimeout)

	var pageOCR extract.PageOCR
	if cfg.OCR.Enabled {
		pageOCR = extract.OCRWithTimeout(tools, cfg.Pipeline.CapabilityTimeout)
	}

	matches := catalog.NewMatchCache()
	stages := pipeline.Stages{
		Extractor:  text,
		Recovery:   recovery.NewStage(pageOCR, logger),
		Classifier: classify.New(semantic, logger),
		Readings:   readings.NewExtractor(semantic, logger),
		Resolver: catalog.NewResolver(semantic, matches,
			catalog.WithResolverLogger(logger),
			catalog.WithResolverMetrics(m),
		),
		Decisions:  decision.NewService(decision.NewEngine(), decision.NewFallback(semantic, logger), m, logger),
		Regulatory: regulatory,
		Custom:     custom,
		Metrics:    m,
	}

	logger.Info("pipeline.wired",
		"llm_provider", cfg.LLM.Provider,
		"semantic", semantic != nil,
		"text_extractor", cfg.OCR.TextExtractor,
		"page_ocr", pageOCR != nil,
		"catalog", cfg.Catalog.RegulatoryPath,
	)
	return &Pipeline{
		Processor:  pipeline.NewProcessor(stages, logger),
		Regulatory: regulatory,
		MatchCache: matches,
	}, nil
}
