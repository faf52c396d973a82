// Package search provides a Bleve full-text index over purchase requests.
package search

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/openprocure/procflow/internal/models"
)

// Hit is one search result: the matching request ID and its score.
type Hit struct {
	RequestID int64   `json:"request_id"`
	Score     float64 `json:"score"`
}

// Index is a full-text index of purchase request titles, descriptions and
// proforma vendors.
type Index struct {
	index bleve.Index
}

type requestDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Status      string `json:"status"`
}

func indexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so vendor names
	// match the exact words users type.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("vendor", textFieldMapping)
	docMapping.AddFieldMappingsAt("status", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("request", docMapping)
	im.DefaultType = "request"
	im.DefaultMapping = docMapping
	return im
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a rebuild after mapping
// changes.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open search index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{index: index}, nil
}

// NewMemoryIndex creates a throwaway in-memory index.
func NewMemoryIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexRequest adds or updates a request in the index.
func (i *Index) IndexRequest(req *models.PurchaseRequest) error {
	doc := requestDoc{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	}
	if req.ProformaData != nil {
		doc.Vendor = req.ProformaData.Vendor
	}
	return i.index.Index(strconv.FormatInt(req.ID, 10), doc)
}

// Delete removes a request from the index.
func (i *Index) Delete(requestID int64) error {
	return i.index.Delete(strconv.FormatInt(requestID, 10))
}

// Search runs a match query over all indexed fields and returns up to limit
// hits, best first.
func (i *Index) Search(query string, limit int) ([]Hit, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{RequestID: id, Score: hit.Score})
	}
	return hits, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}
