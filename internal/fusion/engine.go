package fusion

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/bankfuse/bankfuse/internal/extract"
)

// ErrNoResults is the sole precondition the engine enforces: callers must
// supply at least one extraction result. Every other malformed input degrades
// gracefully.
var ErrNoResults = errors.New("at least one extraction result is required")

// Engine runs the full fusion pipeline. It is stateless between calls; the
// only instance data is read-only configuration and collaborators, so one
// Engine can serve concurrent callers.
type Engine struct {
	cfg         Config
	norm        *Normalizer
	validator   *CrossValidator
	fuser       *Fuser
	resolver    *ConflictResolver
	assessor    *QualityAssessor
	recommender *Recommender
	logger      *slog.Logger
}

// New creates an engine. A nil detector disables anomaly scoring (NopDetector)
// and a nil logger falls back to slog.Default.
func New(cfg Config, detector AnomalyDetector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	norm := NewNormalizer(logger)
	return &Engine{
		cfg:         cfg,
		norm:        norm,
		validator:   NewCrossValidator(cfg, norm, logger),
		fuser:       NewFuser(cfg, norm, logger),
		resolver:    NewConflictResolver(cfg, norm, logger),
		assessor:    NewQualityAssessor(cfg, norm, detector, logger),
		recommender: NewRecommender(cfg),
		logger:      logger,
	}
}

// CombineResults cross-validates, fuses, resolves and assesses the methods'
// outputs into one CombinedResult. It never fails because a document was hard
// to parse; low-quality input yields a low-confidence result with verbose
// recommendations instead.
func (e *Engine) CombineResults(results []extract.Result) (*CombinedResult, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	start := time.Now()

	cv := e.validator.Validate(results)
	outcome := e.fuser.Fuse(results, cv)
	resolutions, fused := e.resolver.Resolve(results, outcome.Transactions)
	qa := e.assessor.Assess(fused, results, cv)
	recommendations := e.recommender.Recommend(qa, cv, resolutions)

	methods := make([]string, 0, len(results))
	var totalProcessing time.Duration
	for _, r := range results {
		methods = append(methods, r.Method)
		totalProcessing += r.ProcessingTime
	}
	sort.Strings(methods)

	e.logger.Info("combined extraction results",
		slog.Int("methods", len(results)),
		slog.Int("transactions", len(fused)),
		slog.String("strategy", outcome.Strategy),
		slog.Int("conflicts", len(resolutions)),
		slog.Float64("overall_confidence", qa.OverallConfidence),
		slog.Duration("took", time.Since(start)),
	)

	return &CombinedResult{
		Transactions:        fused,
		QualityAssessment:   qa,
		CrossValidation:     cv,
		MethodContributions: outcome.Contributions,
		ConflictResolutions: resolutions,
		Recommendations:     recommendations,
		ProcessingSummary: ProcessingSummary{
			MethodsUsed:      methods,
			FusionStrategy:   outcome.Strategy,
			TotalTimeSeconds: totalProcessing.Seconds(),
			CombinedAt:       time.Now().UTC(),
		},
	}, nil
}
