package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specgen/internal/common/logger"
	"specgen/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func createTestIndexer(t *testing.T, status int, response string) (*Indexer, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewIndexer(client, "specifications", logger.NewTestLogger(t)), &requests
}

func TestIndexer_Index(t *testing.T) {
	idx, requests := createTestIndexer(t, http.StatusCreated, `{"result":"created"}`)

	spec := &models.Specification{
		ID:        "spec-1",
		ProjectID: "p1",
		Model:     "m",
		Text:      "# Login\nUsers sign in.",
		Version:   3,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, idx.Index(context.Background(), spec))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/specifications/_doc/spec-1", req.Path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, "p1", doc["project_id"])
	assert.Equal(t, float64(3), doc["version"])
	assert.Equal(t, "# Login\nUsers sign in.", doc["text"])
}

func TestIndexer_IndexError(t *testing.T) {
	idx, _ := createTestIndexer(t, http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`)

	err := idx.Index(context.Background(), &models.Specification{ID: "spec-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexFailed)
}

func TestIndexer_Search(t *testing.T) {
	response := `{
		"hits": {
			"hits": [
				{
					"_id": "spec-2",
					"_score": 2.5,
					"_source": {"project_id": "p1", "model": "m", "version": 2, "text": "...", "created_at": "2024-05-01T00:00:00Z"},
					"highlight": {"text": ["users <em>login</em> with email"]}
				}
			]
		}
	}`
	idx, requests := createTestIndexer(t, http.StatusOK, response)

	hits, err := idx.Search(context.Background(), "p1", "login", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "spec-2", hits[0].ID)
	assert.Equal(t, 2, hits[0].Version)
	assert.Equal(t, 2.5, hits[0].Score)
	assert.Equal(t, []string{"users <em>login</em> with email"}, hits[0].Snippets)

	require.Len(t, *requests, 1)
	assert.Equal(t, "/specifications/_search", (*requests)[0].Path)
	assert.Contains(t, (*requests)[0].Body, `"project_id":"p1"`)
	assert.Contains(t, (*requests)[0].Body, `"query":"login"`)
}

func TestIndexer_SearchError(t *testing.T) {
	idx, _ := createTestIndexer(t, http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`)

	_, err := idx.Search(context.Background(), "p1", "login", 5)
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestIndexer_EnsureIndex(t *testing.T) {
	idx, requests := createTestIndexer(t, http.StatusOK, `{"acknowledged":true}`)
	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPut, (*requests)[0].Method)
	assert.True(t, strings.Contains((*requests)[0].Body, `"project_id"`))

	idx, _ = createTestIndexer(t, http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`)
	assert.NoError(t, idx.EnsureIndex(context.Background()))

	idx, _ = createTestIndexer(t, http.StatusInternalServerError, `{"error":{"type":"cluster_block_exception"}}`)
	assert.ErrorIs(t, idx.EnsureIndex(context.Background()), ErrIndexFailed)
}

func TestBuildQuery_AllProjects(t *testing.T) {
	q := buildQuery("", "login")
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	_, hasFilter := boolQuery["filter"]
	assert.False(t, hasFilter)
}
