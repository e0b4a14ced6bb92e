package model

import (
	"context"
	"fmt"

	commonhttp "sitesight/internal/common/http"
)

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

// RemoteRanker calls an inference endpoint that answers
// {"predictions": [score, ...]}.
type RemoteRanker struct {
	client   *commonhttp.Client
	endpoint string
}

func NewRemoteRanker(client *commonhttp.Client, endpoint string) *RemoteRanker {
	return &RemoteRanker{client: client, endpoint: endpoint}
}

func (r *RemoteRanker) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	var resp struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := r.client.PostJSON(ctx, r.endpoint, predictRequest{Instances: rows}, &resp); err != nil {
		return nil, fmt.Errorf("ranking endpoint: %w", err)
	}
	if len(resp.Predictions) != len(rows) {
		return nil, fmt.Errorf("ranking endpoint returned %d scores for %d rows", len(resp.Predictions), len(rows))
	}
	return resp.Predictions, nil
}

// RemoteClassifier calls an inference endpoint that answers
// {"predictions": [[label, ...], ...]} with labels already decoded.
type RemoteClassifier struct {
	client   *commonhttp.Client
	endpoint string
}

func NewRemoteClassifier(client *commonhttp.Client, endpoint string) *RemoteClassifier {
	return &RemoteClassifier{client: client, endpoint: endpoint}
}

func (c *RemoteClassifier) Predict(ctx context.Context, rows [][]float64) ([][]string, error) {
	var resp struct {
		Predictions [][]string `json:"predictions"`
	}
	if err := c.client.PostJSON(ctx, c.endpoint, predictRequest{Instances: rows}, &resp); err != nil {
		return nil, fmt.Errorf("recommendation endpoint: %w", err)
	}
	if len(resp.Predictions) != len(rows) {
		return nil, fmt.Errorf("recommendation endpoint returned %d label sets for %d rows", len(resp.Predictions), len(rows))
	}
	return resp.Predictions, nil
}
