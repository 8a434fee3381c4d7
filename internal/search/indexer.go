// Package search indexes completed specifications into Elasticsearch and runs
// full-text queries over them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"specgen/internal/common/logger"
	"specgen/internal/models"
)

var (
	ErrIndexFailed  = errors.New("INDEX_FAILED")
	ErrSearchFailed = errors.New("SEARCH_FAILED")
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"project_id": {"type": "keyword"},
			"model": {"type": "keyword"},
			"version": {"type": "integer"},
			"text": {"type": "text"},
			"created_at": {"type": "date"}
		}
	}
}`

type document struct {
	ProjectID string    `json:"project_id"`
	Model     string    `json:"model"`
	Version   int       `json:"version"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.With(map[string]interface{}{"component": "search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping. An existing index is left as is.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: create index: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var body struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if json.NewDecoder(res.Body).Decode(&body) == nil && body.Error.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("%w: create index: %s", ErrIndexFailed, res.Status())
	}
	return nil
}

// Index stores spec under its id, replacing any earlier copy.
func (i *Indexer) Index(ctx context.Context, spec *models.Specification) error {
	body, err := json.Marshal(document{
		ProjectID: spec.ProjectID,
		Model:     spec.Model,
		Version:   spec.Version,
		Text:      spec.Text,
		CreatedAt: spec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: spec.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.String())
	}

	i.logger.Debug("specification indexed", map[string]interface{}{
		"specificationId": spec.ID,
		"version":         spec.Version,
	})
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    document            `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search matches query against specification text. An empty projectID
// searches every project.
func (i *Indexer) Search(ctx context.Context, projectID, query string, limit int) ([]models.SpecificationHit, error) {
	body, err := json.Marshal(buildQuery(projectID, query))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &limit,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	hits := make([]models.SpecificationHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, models.SpecificationHit{
			ID:        h.ID,
			ProjectID: h.Source.ProjectID,
			Model:     h.Source.Model,
			Version:   h.Source.Version,
			Score:     h.Score,
			Snippets:  h.Highlight["text"],
			CreatedAt: h.Source.CreatedAt,
		})
	}

	i.logger.Debug("search completed", map[string]interface{}{
		"projectId": projectID,
		"hits":      len(hits),
		"limit":     limit,
	})
	return hits, nil
}

func buildQuery(projectID, query string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"text": map[string]interface{}{"query": query},
				},
			},
		},
	}
	if projectID != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"project_id": projectID}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"version": map[string]interface{}{"order": "desc"}},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"text": map[string]interface{}{"fragment_size": 160, "number_of_fragments": 3},
			},
		},
	}
}
