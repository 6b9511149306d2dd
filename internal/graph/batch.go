package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// MaxBatchSize is the Microsoft Graph limit on sub-requests per $batch call.
const MaxBatchSize = 20

// BatchRequest is a single sub-request of a JSON batch.
type BatchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchResponse is a single sub-response, correlated to its request by ID.
type BatchResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Err returns the typed error for a failed sub-response, or nil.
func (r *BatchResponse) Err() error {
	if r.Status >= 200 && r.Status < 300 {
		return nil
	}
	if err := WrapError(r.Status); err != nil {
		return fmt.Errorf("graph: batch request %s: status %d: %w", r.ID, r.Status, err)
	}
	return fmt.Errorf("graph: batch request %s: status %d", r.ID, r.Status)
}

// Batch executes the sub-requests against the $batch endpoint, splitting them
// into calls of at most MaxBatchSize. Requests without an ID are numbered
// sequentially. The returned responses cover every sub-request across all
// chunks; sub-request failures do not fail the batch call itself.
func (c *Client) Batch(ctx context.Context, reqs []BatchRequest) ([]BatchResponse, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	for i := range reqs {
		if reqs[i].ID == "" {
			reqs[i].ID = strconv.Itoa(i + 1)
		}
	}

	responses := make([]BatchResponse, 0, len(reqs))
	for start := 0; start < len(reqs); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(reqs) {
			end = len(reqs)
		}
		chunk, err := c.batchOnce(ctx, reqs[start:end])
		if err != nil {
			return responses, err
		}
		responses = append(responses, chunk...)
	}
	return responses, nil
}

func (c *Client) batchOnce(ctx context.Context, reqs []BatchRequest) ([]BatchResponse, error) {
	payload, err := json.Marshal(struct {
		Requests []BatchRequest `json:"requests"`
	}{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	body, status, err := c.Do(ctx, http.MethodPost, c.baseURL+"/$batch", payload)
	if err != nil {
		return nil, fmt.Errorf("batch request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("batch request failed: status %d: %w",
			status, WrapError(status))
	}

	var resp struct {
		Responses []BatchResponse `json:"responses"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return resp.Responses, nil
}
