package vectorindex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

// OpenSearchConfig configures an OpenSearch index client.
type OpenSearchConfig struct {
	Addresses          []string
	Username           string
	Password           string
	Index              string
	TopK               int
	InsecureSkipVerify bool
}

// OpenSearch is a knn index backed by an OpenSearch cluster.
type OpenSearch struct {
	client *opensearchapi.Client
	index  string
	topK   int
	logger *slog.Logger
}

var (
	_ Index  = (*OpenSearch)(nil)
	_ Writer = (*OpenSearch)(nil)
)

// NewOpenSearch creates a client. No request is made until first use.
func NewOpenSearch(cfg OpenSearchConfig, logger *slog.Logger) (*OpenSearch, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("at least one opensearch address is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed cluster certificates
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:  cfg.Addresses,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Transport:  transport,
			MaxRetries: 3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearch{
		client: client,
		index:  cfg.Index,
		topK:   cfg.TopK,
		logger: logger.With("component", "vectorindex", "index", cfg.Index),
	}, nil
}

// Exists implements Index.
func (o *OpenSearch) Exists(ctx context.Context) (bool, error) {
	resp, err := o.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{o.index}})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check index %q: %w", o.index, err)
	}
	return true, nil
}

type knnQuery struct {
	Size  int `json:"size"`
	Query struct {
		KNN map[string]knnField `json:"knn"`
	} `json:"query"`
}

type knnField struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

// Search implements Index.
func (o *OpenSearch) Search(ctx context.Context, vector []float32) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	var q knnQuery
	q.Size = o.topK
	q.Query.KNN = map[string]knnField{"vector": {Vector: vector, K: o.topK}}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode knn query: %w", err)
	}

	resp, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{o.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("knn search failed: %w", err)
	}

	out := make([]Neighbor, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var doc Document
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			o.logger.Warn("skipping undecodable hit", "hit_id", hit.ID, "error", err)
			continue
		}
		if doc.ID == "" {
			doc.ID = hit.ID
		}
		out = append(out, Neighbor{Document: doc, Score: float64(hit.Score)})
	}
	return onePerCategory(out), nil
}

// Mapping returns the index body for vectors of the given dimension.
func Mapping(dimension int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"vector": map[string]any{
					"type":      "knn_vector",
					"dimension": dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"engine":     "nmslib",
						"space_type": "cosinesimil",
					},
				},
				"id":       map[string]any{"type": "keyword"},
				"category": map[string]any{"type": "text"},
				"details":  map[string]any{"type": "text"},
				"text":     map[string]any{"type": "text"},
			},
		},
	}
}

// EnsureIndex implements Writer.
func (o *OpenSearch) EnsureIndex(ctx context.Context, dimension int) (bool, error) {
	exists, err := o.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	body, err := json.Marshal(Mapping(dimension))
	if err != nil {
		return false, err
	}
	if _, err := o.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: o.index,
		Body:  bytes.NewReader(body),
	}); err != nil {
		return false, fmt.Errorf("failed to create index %q: %w", o.index, err)
	}
	o.logger.Info("index created", "dimension", dimension)
	return true, nil
}

type indexedDocument struct {
	Document
	Vector []float32 `json:"vector"`
}

// Put implements Writer.
func (o *OpenSearch) Put(ctx context.Context, doc Document, vector []float32) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	body, err := json.Marshal(indexedDocument{Document: doc, Vector: vector})
	if err != nil {
		return err
	}
	if _, err := o.client.Index(ctx, opensearchapi.IndexReq{
		Index:      o.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{Refresh: "true"},
	}); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	return nil
}
