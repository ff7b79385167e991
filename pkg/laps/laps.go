// Package laps fetches raw per-lap telemetry rows from the historical data
// service. The engine treats the rows as an opaque read-only feed.
package laps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"justapengu.in/strategyd/internal/raceengine"
)

type Config struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// HTTPSource implements raceengine.LapSource against the historical data
// service's JSON API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(config Config) *HTTPSource {
	return &HTTPSource{
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Laps(ctx context.Context, season, round int) ([]raceengine.RawLap, error) {
	url := fmt.Sprintf("%s/laps/%d/%d", s.baseURL, season, round)

	request, err := http.NewRequest(http.MethodGet, url, nil)

	if err != nil {
		return nil, err
	}

	response, err := s.client.Do(request.WithContext(ctx))

	if err != nil {
		return nil, err
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("laps: historical data service returned %s for %s", response.Status, url)
	}

	var rows []raceengine.RawLap

	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return nil, err
	}

	return rows, nil
}
