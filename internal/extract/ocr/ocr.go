// Package ocr turns recognized-text output for scanned statements into raw
// transactions. Recognition itself happens in a backend behind the
// Recognizer interface; this package assembles words into reading-order
// lines and runs the statement line rules over them.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/pdftext"
)

// BoundingBox is a word's position on the page in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Word is a single recognized token.
type Word struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Page is one page of recognition output.
type Page struct {
	PageNumber int     `json:"page_number"`
	Words      []Word  `json:"words"`
	Confidence float64 `json:"confidence"`
}

// Document is a full recognition result.
type Document struct {
	Pages      []Page  `json:"pages"`
	Confidence float64 `json:"confidence"`
	Engine     string  `json:"engine"`
}

// Recognizer runs text recognition over a rasterized statement.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (*Document, error)
}

// Extractor converts recognition output into transactions.
type Extractor struct {
	recognizer Recognizer
	logger     *slog.Logger
}

func New(recognizer Recognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{recognizer: recognizer, logger: logger}
}

func (e *Extractor) Method() string { return extract.MethodOCR }

// Extract recognizes the image and parses the assembled lines.
func (e *Extractor) Extract(ctx context.Context, image []byte) (*extract.Result, error) {
	if e.recognizer == nil {
		return nil, fmt.Errorf("ocr: no recognizer configured")
	}

	start := time.Now()
	doc, err := e.recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("ocr: recognize: %w", err)
	}

	res, err := e.FromRecognized(ctx, doc)
	if err != nil {
		return nil, err
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}

// FromRecognized parses an existing recognition result, for callers that
// already ran the backend themselves.
func (e *Extractor) FromRecognized(ctx context.Context, doc *Document) (*extract.Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("ocr: empty recognition result")
	}

	var lines []string
	for _, page := range doc.Pages {
		lines = append(lines, AssembleLines(page.Words)...)
	}

	transactions, estimated := pdftext.ParseStatementLines(lines)
	if len(transactions) == 0 {
		return nil, fmt.Errorf("ocr: no transaction lines recognized")
	}

	parseRate := 1.0
	if estimated > 0 {
		parseRate = float64(len(transactions)) / float64(estimated)
	}

	recognition := doc.Confidence
	if recognition <= 0 {
		recognition = meanPageConfidence(doc.Pages)
	}

	e.logger.Debug("ocr extraction finished",
		slog.Int("pages", len(doc.Pages)),
		slog.Int("lines", len(lines)),
		slog.Int("transactions", len(transactions)),
		slog.Float64("recognition_confidence", recognition))

	return &extract.Result{
		Method:         extract.MethodOCR,
		Transactions:   transactions,
		Confidence:     extract.BaseWeight(extract.MethodOCR) * parseRate * recognition,
		ProcessingTime: time.Since(start),
		Metadata: map[string]string{
			"engine": doc.Engine,
			"pages":  fmt.Sprintf("%d", len(doc.Pages)),
		},
		QualityMetrics: map[string]float64{
			"parse_rate":             parseRate,
			"recognition_confidence": recognition,
		},
	}, nil
}

// AssembleLines groups words into visual lines by vertical overlap and
// orders each line left to right.
func AssembleLines(words []Word) []string {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.Y < sorted[j].BoundingBox.Y
	})

	var groups [][]Word
	current := []Word{sorted[0]}
	baseline := sorted[0].BoundingBox.Y
	height := sorted[0].BoundingBox.Height

	for _, w := range sorted[1:] {
		// Same line when the vertical offset stays within half a word height.
		tolerance := max(height, w.BoundingBox.Height) / 2
		if w.BoundingBox.Y-baseline <= tolerance {
			current = append(current, w)
			continue
		}
		groups = append(groups, current)
		current = []Word{w}
		baseline = w.BoundingBox.Y
		height = w.BoundingBox.Height
	}
	groups = append(groups, current)

	lines := make([]string, 0, len(groups))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].BoundingBox.X < group[j].BoundingBox.X
		})
		parts := make([]string, 0, len(group))
		for _, w := range group {
			if t := strings.TrimSpace(w.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return lines
}

func meanPageConfidence(pages []Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pages {
		sum += p.Confidence
	}
	return sum / float64(len(pages))
}
