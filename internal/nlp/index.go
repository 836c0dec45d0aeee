package nlp

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/bankfuse/bankfuse/internal/fusion"
)

// TransactionDocument is the indexed form of a fused transaction.
type TransactionDocument struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Reference   string  `json:"reference"`
	Merchant    string  `json:"merchant"`
}

// Hit is one search result with its relevance score.
type Hit struct {
	Document TransactionDocument
	Score    float64
}

// Index provides full-text search over fused transactions, held in memory.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

func NewIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("nlp: create index: %w", err)
	}
	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	numericField := bleve.NewNumericFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("date", keywordField)
	docMapping.AddFieldMappingsAt("description", textField)
	docMapping.AddFieldMappingsAt("amount", numericField)
	docMapping.AddFieldMappingsAt("reference", keywordField)
	docMapping.AddFieldMappingsAt("merchant", textField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexTransactions adds fused transactions in one batch. Recognitions are
// optional; when index-aligned with the transactions they fill the merchant
// field.
func (i *Index) IndexTransactions(transactions []fusion.Transaction, recognitions []*Recognition) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for n, tx := range transactions {
		doc := TransactionDocument{
			ID:          uuid.New().String(),
			Date:        tx.Date,
			Description: tx.Description,
			Amount:      tx.Amount,
			Reference:   tx.Reference,
		}
		if recognitions != nil && n < len(recognitions) && recognitions[n] != nil {
			doc.Merchant = recognitions[n].Merchant
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("nlp: index transaction %d: %w", n, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("nlp: batch index: %w", err)
	}
	return nil
}

// Search runs a fuzzy full-text query over descriptions and merchants.
func (i *Index) Search(query string, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("nlp: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc := TransactionDocument{ID: h.ID}
		if v, ok := h.Fields["date"].(string); ok {
			doc.Date = v
		}
		if v, ok := h.Fields["description"].(string); ok {
			doc.Description = v
		}
		if v, ok := h.Fields["amount"].(float64); ok {
			doc.Amount = v
		}
		if v, ok := h.Fields["reference"].(string); ok {
			doc.Reference = v
		}
		if v, ok := h.Fields["merchant"].(string); ok {
			doc.Merchant = v
		}
		hits = append(hits, Hit{Document: doc, Score: h.Score})
	}
	return hits, nil
}

// DocCount reports the number of indexed transactions.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
