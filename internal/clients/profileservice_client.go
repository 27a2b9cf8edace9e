// Package clients provides HTTP clients for communicating with external services.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/rs/zerolog"
)

// ProfileServiceClient fetches customer profiles from the external profile
// service. It satisfies profile.Loader.
type ProfileServiceClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewProfileServiceClient creates a new client for the profile service.
func NewProfileServiceClient(baseURL string, logger zerolog.Logger) *ProfileServiceClient {
	return &ProfileServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("client", "profile-service").Logger(),
	}
}

// profileResponse is the wire shape the profile service returns.
type profileResponse struct {
	CustomerID int    `json:"customerId"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// LoadProfile fetches a customer's profile by raw customer ID.
func (c *ProfileServiceClient) LoadProfile(ctx context.Context, customerID string) (profile.Profile, error) {
	url := fmt.Sprintf("%s/v1/customers/%s/profile", c.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("failed to create profile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("failed to execute profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return profile.Profile{}, fmt.Errorf("profile for customer %s not found", customerID)
	}
	if resp.StatusCode != http.StatusOK {
		return profile.Profile{}, fmt.Errorf("profile service returned unexpected status code: %d", resp.StatusCode)
	}

	var pr profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return profile.Profile{}, fmt.Errorf("failed to decode profile response: %w", err)
	}

	c.logger.Info().Str("customer_id", customerID).Msg("Successfully fetched profile")
	return profile.Profile{
		CustomerID: pr.CustomerID,
		Mobile:     pr.Mobile,
		Email:      pr.Email,
		FirstName:  pr.FirstName,
		LastName:   pr.LastName,
	}, nil
}
