package cas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// BanList is an implementation of the core BanList interface over the CAS
// (Combot Anti-Spam) HTTP API.
type BanList struct {
	client  *retryablehttp.Client
	baseURL string
	logger  *zap.Logger
}

// checkResponse is the CAS /check payload. ok=true means the user is listed.
type checkResponse struct {
	OK bool `json:"ok"`
}

// NewBanList creates a CAS client. retryMax bounds transparent retries on
// transient failures.
func NewBanList(baseURL string, timeout time.Duration, retryMax int, logger *zap.Logger) *BanList {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &BanList{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// IsKnownAbuser checks the user against the CAS ban list. Consulted only at
// join time; callers treat failures as "not listed".
func (b *BanList) IsKnownAbuser(ctx context.Context, userID int64) (bool, error) {
	url := fmt.Sprintf("%s/check?user_id=%d", b.baseURL, userID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build CAS request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("CAS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("CAS returned status %d", resp.StatusCode)
	}

	var check checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&check); err != nil {
		return false, fmt.Errorf("failed to decode CAS response: %w", err)
	}

	b.logger.Debug("CAS lookup",
		zap.Int64("user_id", userID),
		zap.Bool("listed", check.OK))
	return check.OK, nil
}
