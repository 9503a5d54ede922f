package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// IMEIService handles interactions with the external IMEI/TAC lookup API.
type IMEIService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// TACInfo is the device identity derived from the IMEI's Type Allocation
// Code, as reported by the lookup API.
type TACInfo struct {
	TAC   string `json:"tac"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	Valid bool   `json:"valid"`
}

// NewIMEIService creates a new IMEI lookup client from environment
// configuration.
func NewIMEIService() *IMEIService {
	baseURL := os.Getenv("IMEI_API_URL")
	if baseURL == "" {
		baseURL = "https://api.imeicheck.net/v1"
	}

	apiKey := os.Getenv("IMEI_API_KEY")
	if apiKey == "" {
		log.Printf("WARNING: IMEI_API_KEY is missing; device lookups will fail")
	}

	return &IMEIService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Lookup resolves the brand/model behind an IMEI's TAC prefix.
func (s *IMEIService) Lookup(ctx context.Context, imei string) (*TACInfo, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("missing IMEI API credentials. Please set IMEI_API_KEY")
	}

	url := fmt.Sprintf("%s/checks?imei=%s", s.baseURL, imei)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IMEI lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read IMEI lookup response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IMEI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var info TACInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse IMEI lookup response: %w", err)
	}

	return &info, nil
}
