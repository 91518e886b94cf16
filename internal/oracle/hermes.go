package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loanguard/internal/logger"

	"golang.org/x/time/rate"
)

// ErrMalformedUpdate indicates Hermes returned something other than a list of
// hex encoded price updates.
var ErrMalformedUpdate = errors.New("malformed price update")

// UpdateSource fetches signed price update payloads for a feed.
type UpdateSource interface {
	LatestPriceUpdate(ctx context.Context, feedID string) ([][]byte, error)
}

type hermesResponse struct {
	Binary *struct {
		Encoding string            `json:"encoding"`
		Data     []json.RawMessage `json:"data"`
	} `json:"binary"`
}

// HermesClient talks to the Pyth Hermes price service.
type HermesClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

func NewHermesClient(baseURL string, timeout time.Duration, requestsPerSecond float64, burst int, log logger.Logger) *HermesClient {
	if burst <= 0 {
		burst = 1
	}
	return &HermesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		logger:  log.With(logger.String("component", "hermes_client")),
	}
}

// LatestPriceUpdate returns the decoded update blobs for feedID.
func (c *HermesClient) LatestPriceUpdate(ctx context.Context, feedID string) ([][]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for hermes rate limit: %w", err)
	}

	query := url.Values{}
	query.Add("ids[]", feedID)
	query.Set("encoding", "hex")
	endpoint := c.baseURL + "/v2/updates/price/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build hermes request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price update: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read hermes response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch price update: hermes status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	updates, err := decodeUpdates(body)
	if err != nil {
		c.logger.Error("unexpected hermes response", logger.Error(err))
		return nil, err
	}

	c.logger.Debug("price update fetched",
		logger.String("feed_id", feedID),
		logger.Int("updates", len(updates)))
	return updates, nil
}

func decodeUpdates(body []byte) ([][]byte, error) {
	var parsed hermesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	if parsed.Binary == nil || parsed.Binary.Data == nil {
		return nil, fmt.Errorf("%w: binary.data missing", ErrMalformedUpdate)
	}
	if len(parsed.Binary.Data) == 0 {
		return nil, fmt.Errorf("%w: binary.data empty", ErrMalformedUpdate)
	}

	updates := make([][]byte, 0, len(parsed.Binary.Data))
	for i, raw := range parsed.Binary.Data {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: item %d is not a string", ErrMalformedUpdate, i)
		}
		blob, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil || len(blob) == 0 {
			return nil, fmt.Errorf("%w: item %d is not hex", ErrMalformedUpdate, i)
		}
		updates = append(updates, blob)
	}
	return updates, nil
}
