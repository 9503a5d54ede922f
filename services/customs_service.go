package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/clearport/clearport_backend/models"
)

// How long cached duty rates stay fresh.
const dutyCacheTTL = 6 * time.Hour

// ErrUnknownHSCode is returned when the customs API has no rate for the
// requested HS code.
var ErrUnknownHSCode = errors.New("unknown HS code")

// CustomsService is a pass-through client for the external customs duty
// API with a Redis read-through cache.
type CustomsService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	redis   *redis.Client
	logger  *log.Logger
}

// NewCustomsService creates a new duty lookup client. The Redis client
// may be nil, in which case caching is skipped.
func NewCustomsService(redisClient *redis.Client) *CustomsService {
	baseURL := os.Getenv("CUSTOMS_API_URL")
	if baseURL == "" {
		baseURL = "https://api.customs.gov.lb/v1"
	}

	apiKey := os.Getenv("CUSTOMS_API_KEY")
	if apiKey == "" {
		log.Printf("WARNING: CUSTOMS_API_KEY is missing; duty lookups will fail")
	}

	return &CustomsService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		redis:   redisClient,
		logger:  log.New(os.Stdout, "[CUSTOMS] ", log.LstdFlags),
	}
}

// DutyForHSCode returns the duty rate for an HS code, serving from cache
// when possible.
func (s *CustomsService) DutyForHSCode(ctx context.Context, hsCode string) (*models.DutyRate, error) {
	cacheKey := "duty:" + hsCode

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var rate models.DutyRate
			if err := json.Unmarshal([]byte(cached), &rate); err == nil {
				return &rate, nil
			}
		}
	}

	rate, err := s.fetch(ctx, hsCode)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(rate); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, dutyCacheTTL).Err(); err != nil {
				s.logger.Printf("failed to cache duty rate for %s: %v", hsCode, err)
			}
		}
	}

	return rate, nil
}

func (s *CustomsService) fetch(ctx context.Context, hsCode string) (*models.DutyRate, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("missing customs API credentials. Please set CUSTOMS_API_KEY")
	}

	url := fmt.Sprintf("%s/duty/%s", s.baseURL, hsCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duty lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read duty lookup response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHSCode, hsCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("customs API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rate models.DutyRate
	if err := json.Unmarshal(body, &rate); err != nil {
		return nil, fmt.Errorf("failed to parse duty lookup response: %w", err)
	}

	return &rate, nil
}
