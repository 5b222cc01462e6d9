package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/swellmates/swellmates-backend/internal/matching"
)

// HTTPStrategy calls a remote normalization service (geocoder or language
// model frontend). Callers wrap it with a timeout and degrade on error, so
// it reports failures instead of guessing.
type HTTPStrategy struct {
	endpoint string
	client   *http.Client
}

// NewHTTPStrategy builds a strategy against the given endpoint.
func NewHTTPStrategy(endpoint string, timeout time.Duration) *HTTPStrategy {
	return &HTTPStrategy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type normalizeRequest struct {
	Country string   `json:"country"`
	Text    string   `json:"text"`
	Intent  string   `json:"intent"`
	Areas   []string `json:"areas,omitempty"`
}

type normalizeResponse struct {
	Areas []string `json:"areas"`
	Towns []string `json:"towns"`
}

func (s *HTTPStrategy) NormalizeArea(ctx context.Context, country, text string, intent matching.Intent) ([]matching.CompassArea, error) {
	resp, err := s.post(ctx, "/v1/normalize-area", normalizeRequest{
		Country: country,
		Text:    text,
		Intent:  string(intent),
	})
	if err != nil {
		return nil, err
	}

	areas := make([]matching.CompassArea, 0, len(resp.Areas))
	for _, raw := range resp.Areas {
		// Responses are re-classified against the enum; tokens outside it
		// are dropped rather than trusted.
		if area, ok := matching.ParseCompassToken(raw); ok {
			areas = append(areas, area)
		}
	}
	return areas, nil
}

func (s *HTTPStrategy) ExtractTowns(ctx context.Context, country, text string, intent matching.Intent, areas []matching.CompassArea) ([]string, error) {
	areaStrings := make([]string, 0, len(areas))
	for _, a := range areas {
		areaStrings = append(areaStrings, string(a))
	}

	resp, err := s.post(ctx, "/v1/extract-towns", normalizeRequest{
		Country: country,
		Text:    text,
		Intent:  string(intent),
		Areas:   areaStrings,
	})
	if err != nil {
		return nil, err
	}
	return resp.Towns, nil
}

func (s *HTTPStrategy) post(ctx context.Context, path string, body normalizeRequest) (*normalizeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal normalize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("normalization service returned %d", res.StatusCode)
	}

	var out normalizeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode normalize response: %w", err)
	}
	return &out, nil
}
