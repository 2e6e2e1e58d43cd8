package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/communa-labs/ticketing/internal/domain"
)

// ScheduleInfo represents sellable schedule data fetched from the catalog service
type ScheduleInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	IsActive  bool      `json:"is_active"`
	Venue     string    `json:"venue,omitempty"`
	Capacity  int64     `json:"capacity,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ScheduleFetcher fetches sellable schedule data from the catalog service
type ScheduleFetcher interface {
	// FetchSchedule fetches schedule data for a sellable from the catalog service
	FetchSchedule(ctx context.Context, sellable domain.Sellable) (*ScheduleInfo, error)
}

// HTTPCatalogClient fetches schedule data via HTTP from the catalog service
type HTTPCatalogClient struct {
	baseURL    string
	httpClient *http.Client
	sfGroup    singleflight.Group
}

// NewHTTPCatalogClient creates a new HTTP catalog client
func NewHTTPCatalogClient(catalogServiceURL string) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL: catalogServiceURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// FetchSchedule fetches schedule data from the catalog service via HTTP.
// Concurrent calls for the same sellable share a single in-flight request.
func (c *HTTPCatalogClient) FetchSchedule(ctx context.Context, sellable domain.Sellable) (*ScheduleInfo, error) {
	key := fmt.Sprintf("%s:%s", sellable.Kind, sellable.ID)

	v, err, _ := c.sfGroup.Do(key, func() (interface{}, error) {
		return c.doFetch(ctx, sellable)
	})
	if err != nil {
		return nil, err
	}

	return v.(*ScheduleInfo), nil
}

func (c *HTTPCatalogClient) doFetch(ctx context.Context, sellable domain.Sellable) (*ScheduleInfo, error) {
	url := fmt.Sprintf("%s/api/v1/%ss/%s", c.baseURL, sellable.Kind, sellable.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s not found: %s", sellable.Kind, sellable.ID)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Catalog service wraps payloads as { success: true, data: ScheduleInfo }
	var response struct {
		Success bool         `json:"success"`
		Data    ScheduleInfo `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("catalog returned unsuccessful response")
	}

	return &response.Data, nil
}

// StaticScheduleFetcher serves schedules from an in-memory table. Used in
// tests and in deployments without a catalog service, where the validity
// window on the ticket type itself is authoritative.
type StaticScheduleFetcher struct {
	mu        sync.RWMutex
	schedules map[string]*ScheduleInfo
}

// NewStaticScheduleFetcher creates a static schedule fetcher
func NewStaticScheduleFetcher() *StaticScheduleFetcher {
	return &StaticScheduleFetcher{
		schedules: make(map[string]*ScheduleInfo),
	}
}

// Register adds or replaces a schedule entry
func (f *StaticScheduleFetcher) Register(sellable domain.Sellable, info *ScheduleInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[string(sellable.Kind)+":"+sellable.ID] = info
}

// FetchSchedule returns the registered schedule for the sellable
func (f *StaticScheduleFetcher) FetchSchedule(ctx context.Context, sellable domain.Sellable) (*ScheduleInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	info, ok := f.schedules[string(sellable.Kind)+":"+sellable.ID]
	if !ok {
		return nil, fmt.Errorf("%s not found: %s", sellable.Kind, sellable.ID)
	}
	return info, nil
}
