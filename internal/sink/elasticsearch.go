package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sitesight/internal/pipeline"

	"github.com/elastic/go-elasticsearch/v8"
)

// Elasticsearch indexes one document per ranked site with the bulk API.
// Document ids are the site names, so each run overwrites the previous one.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearch(client *elasticsearch.Client, index string) *Elasticsearch {
	return &Elasticsearch{client: client, index: index}
}

func (e *Elasticsearch) Name() string { return "elasticsearch" }

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (e *Elasticsearch) Write(ctx context.Context, run *pipeline.Run) error {
	docs := documents(run)
	if len(docs) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		var action bulkAction
		action.Index.Index = e.index
		action.Index.ID = doc.SiteName
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode %s: %w", doc.SiteName, err)
		}
	}

	res, err := e.client.Bulk(
		&body,
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithIndex(e.index),
		e.client.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request failed: %s", res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	var reasons []string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil {
				reasons = append(reasons, fmt.Sprintf("%s: %s", result.Error.Type, result.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk indexing rejected %d documents: %s", len(reasons), strings.Join(reasons, "; "))
}
