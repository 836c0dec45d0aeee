package main

import (
	"fmt"
	"log/slog"

	"github.com/bankfuse/bankfuse/internal/cache"
	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/csvtext"
	"github.com/bankfuse/bankfuse/internal/extract/exceltab"
	"github.com/bankfuse/bankfuse/internal/extract/ocr"
	"github.com/bankfuse/bankfuse/internal/extract/pdftext"
	"github.com/bankfuse/bankfuse/internal/extract/sniffer"
	"github.com/bankfuse/bankfuse/internal/extract/tables"
	"github.com/bankfuse/bankfuse/internal/fusion"
	"github.com/bankfuse/bankfuse/internal/nlp"
	"github.com/bankfuse/bankfuse/pkg/config"
)

// Dependencies holds the extraction pipeline's wired components.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Runner     *extract.Runner
	Engine     *fusion.Engine
	Recognizer *nlp.Recognizer
	Index      *nlp.Index

	CSVText  *csvtext.Extractor
	ExcelTab *exceltab.Extractor
	PDFText  *pdftext.Extractor
	OCR      *ocr.Extractor
	Tables   *tables.Extractor

	Cache     *cache.Store
	Scheduler *cache.Scheduler
}

// InitDependencies wires the pipeline from configuration.
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.Runner = extract.NewRunner(
		cfg.Extraction.MaxConcurrentMethods,
		cfg.Extraction.MethodTimeout,
		logger,
	)

	var detector fusion.AnomalyDetector = fusion.NopDetector{}
	if cfg.Fusion.AnomalyEnabled {
		detector = fusion.NewIsolationForest()
	}
	fusionCfg := fusion.DefaultConfig()
	fusionCfg.Thresholds.MinConfidence = cfg.Fusion.MinConfidence
	deps.Engine = fusion.New(fusionCfg, detector, logger)

	deps.CSVText = csvtext.New(logger)
	deps.ExcelTab = exceltab.New(logger)
	deps.PDFText = pdftext.New(logger)
	deps.OCR = ocr.New(nil, logger)

	deps.Recognizer = nlp.NewRecognizer(defaultMerchants())

	index, err := nlp.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to init search index: %w", err)
	}
	deps.Index = index

	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache.Dir, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
		deps.Cache = store
		deps.Scheduler = cache.NewScheduler(store, logger)
		if err := deps.Scheduler.Start(cfg.Cache.SweepSchedule); err != nil {
			return nil, fmt.Errorf("failed to start cache sweep: %w", err)
		}
	}

	return deps, nil
}

// MethodsFor selects the extraction methods that can handle a file kind.
func (d *Dependencies) MethodsFor(kind sniffer.Kind) []extract.Method {
	switch kind {
	case sniffer.KindCSV:
		// delimited text files also carry a usable text layer
		return []extract.Method{d.CSVText, d.PDFText}
	case sniffer.KindExcel:
		return []extract.Method{d.ExcelTab}
	case sniffer.KindPDF:
		methods := []extract.Method{d.PDFText}
		if d.Tables != nil {
			methods = append(methods, d.Tables)
		}
		return methods
	case sniffer.KindImage:
		if d.Config.Extraction.OCREnabled {
			return []extract.Method{d.OCR}
		}
		return nil
	default:
		return nil
	}
}

// UseTableDetector wires a table-detection backend, enabling the
// table-grid method for PDF statements.
func (d *Dependencies) UseTableDetector(det tables.Detector) {
	d.Tables = tables.New(det, d.Logger)
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.Index != nil {
		if err := d.Index.Close(); err != nil {
			d.Logger.Warn("closing search index", slog.String("error", err.Error()))
		}
	}
}

// defaultMerchants seeds the recognizer with a starter pattern set. Real
// deployments extend this from their own merchant data.
func defaultMerchants() []nlp.Merchant {
	return []nlp.Merchant{
		{Pattern: "STARBUCKS", CleanName: "Starbucks", Category: "Coffee"},
		{Pattern: "MCDONALD", CleanName: "McDonald's", Category: "Fast Food"},
		{Pattern: "UBER EATS", CleanName: "Uber Eats", Category: "Food Delivery"},
		{Pattern: "UBER", CleanName: "Uber", Category: "Transport"},
		{Pattern: "AMAZON", CleanName: "Amazon", Category: "Shopping"},
		{Pattern: "NETFLIX", CleanName: "Netflix", Category: "Entertainment"},
		{Pattern: "SPOTIFY", CleanName: "Spotify", Category: "Entertainment"},
		{Pattern: "CONTINENTE", CleanName: "Continente", Category: "Groceries"},
		{Pattern: "PINGO DOCE", CleanName: "Pingo Doce", Category: "Groceries"},
		{Pattern: "MERCADONA", CleanName: "Mercadona", Category: "Groceries"},
	}
}
