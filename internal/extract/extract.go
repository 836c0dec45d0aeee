// Package extract defines the common output shape shared by all extraction
// methods. Each method (CSV, Excel, PDF text, table grid, OCR) produces a
// Result; the fusion engine consumes a list of them and never looks behind it.
package extract

import (
	"time"
)

// Method identifiers. Unknown methods are accepted by the fusion engine and
// scored with DefaultBaseWeight.
const (
	MethodCSVText   = "csvtext"
	MethodExcelTab  = "exceltab"
	MethodPDFText   = "pdftext"
	MethodTableGrid = "tablegrid"
	MethodOCR       = "ocr"
	MethodTesseract = "tesseract"
)

// DefaultBaseWeight is the prior weight for methods not in BaseWeights.
const DefaultBaseWeight = 0.5

// BaseWeights ranks extraction methods by historical reliability. Digitally
// native sources outrank rasterized ones.
var BaseWeights = map[string]float64{
	MethodCSVText:   0.9,
	MethodExcelTab:  0.85,
	MethodPDFText:   0.85,
	MethodOCR:       0.8,
	MethodTableGrid: 0.75,
	MethodTesseract: 0.7,
}

// BaseWeight returns the prior weight for a method.
func BaseWeight(method string) float64 {
	if w, ok := BaseWeights[method]; ok {
		return w
	}
	return DefaultBaseWeight
}

// RawTransaction is one candidate transaction as a method produced it. Keys
// are not uniform across methods; the fusion normalizer canonicalizes them.
// Well-known keys: date, amount, description, balance, reference, type.
type RawTransaction map[string]string

// Clone returns a copy that can be mutated without touching the original.
func (t RawTransaction) Clone() RawTransaction {
	out := make(RawTransaction, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Result is one method's complete output for one document. Immutable once
// produced; owned by the runner that invoked the method.
type Result struct {
	Method         string             `json:"method"`
	Transactions   []RawTransaction   `json:"transactions"`
	Confidence     float64            `json:"confidence"`
	ProcessingTime time.Duration      `json:"processing_time"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	QualityMetrics map[string]float64 `json:"quality_metrics,omitempty"`
}

// MeanQuality averages the result's quality metrics. Results without metrics
// get a neutral 0.5 so a method is neither rewarded nor punished for not
// reporting diagnostics.
func (r Result) MeanQuality() float64 {
	if len(r.QualityMetrics) == 0 {
		return 0.5
	}
	var sum float64
	for _, v := range r.QualityMetrics {
		sum += v
	}
	return sum / float64(len(r.QualityMetrics))
}
