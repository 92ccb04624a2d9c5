package rakuten

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

const (
	// DefaultEndpoint is the Ichiba item ranking API.
	DefaultEndpoint = "https://app.rakuten.co.jp/services/api/IchibaItem/Ranking/20220601"
	apiSource       = "rakuten-api"
	// maxPages is the deepest page the ranking API serves.
	maxPages = 34
)

// APIClient reads ranking pages from the Ichiba ranking API, one page at a
// time with a fixed delay between calls.
type APIClient struct {
	endpoint string
	appID    string
	genreID  int

	client  *http.Client
	limiter *rate.Limiter
	retry   *utils.RetryConfig
	logger  *utils.Logger
}

// NewAPIClient creates an APIClient from configuration.
func NewAPIClient(cfg *config.Config, logger *utils.Logger) *APIClient {
	every := rate.Inf
	if cfg.RateLimitMs > 0 {
		every = rate.Every(time.Duration(cfg.RateLimitMs) * time.Millisecond)
	}
	return &APIClient{
		endpoint: DefaultEndpoint,
		appID:    cfg.RakutenAppID,
		genreID:  cfg.GenreID,
		client:   &http.Client{Timeout: time.Duration(cfg.FetchTimeoutSec) * time.Second},
		limiter:  rate.NewLimiter(every, 1),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// WithEndpoint points the client at a different API base URL.
func (c *APIClient) WithEndpoint(endpoint string) *APIClient {
	c.endpoint = endpoint
	return c
}

// Fetch reads pages 1..pages in order. Any page failure aborts the fetch and
// no rows are returned.
func (c *APIClient) Fetch(ctx context.Context, pages int) ([]*models.RawItem, error) {
	if c.appID == "" {
		return nil, fmt.Errorf("rakuten: APP_ID is not set")
	}
	if pages < 1 {
		pages = 1
	}
	if pages > maxPages {
		c.logger.Warn("[rakuten] %d pages requested, the API serves at most %d", pages, maxPages)
		pages = maxPages
	}

	c.logger.Info("[rakuten] Fetching %d ranking pages for genre %d", pages, c.genreID)

	var rows []*models.RawItem
	for page := 1; page <= pages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rakuten: page %d: %w", page, err)
		}

		var pageRows []*models.RawItem
		err := c.retry.Do(ctx, fmt.Sprintf("ranking-page-%d", page), func() error {
			var err error
			pageRows, err = c.fetchPage(ctx, page)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("rakuten: page %d: %w", page, err)
		}

		rows = append(rows, pageRows...)
		c.logger.Info("[rakuten] Page %d done — %d rows so far", page, len(rows))

		if len(pageRows) == 0 {
			c.logger.Warn("[rakuten] Page %d returned no items — stopping", page)
			break
		}
	}
	return rows, nil
}

type rankingResponse struct {
	Items []struct {
		Item map[string]json.RawMessage `json:"Item"`
	} `json:"Items"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *APIClient) fetchPage(ctx context.Context, page int) ([]*models.RawItem, error) {
	q := url.Values{}
	q.Set("applicationId", c.appID)
	q.Set("format", "json")
	q.Set("genreId", strconv.Itoa(c.genreID))
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload rankingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("api error %s: %s", payload.Error, payload.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	now := time.Now()
	rows := make([]*models.RawItem, 0, len(payload.Items))
	for _, wrapped := range payload.Items {
		it := wrapped.Item
		rows = append(rows, &models.RawItem{
			Rank:          field(it, "rank"),
			ItemCode:      field(it, "itemCode"),
			ItemName:      field(it, "itemName"),
			ItemPrice:     field(it, "itemPrice"),
			ReviewAverage: field(it, "reviewAverage"),
			ReviewCount:   field(it, "reviewCount"),
			ItemURL:       field(it, "itemUrl"),
			ImageURL:      firstImage(it),
			FetchedAt:     now,
			Source:        apiSource,
		})
	}
	c.logger.Debug("[rakuten] Page %d — %d items", page, len(rows))
	return rows, nil
}

// field renders a loosely typed JSON value as text. Strings are unquoted,
// numbers keep their literal form and null becomes "".
func field(item map[string]json.RawMessage, key string) string {
	raw, ok := item[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

// firstImage returns the first medium image URL, falling back to small images.
func firstImage(item map[string]json.RawMessage) string {
	for _, key := range []string{"mediumImageUrls", "smallImageUrls"} {
		raw, ok := item[key]
		if !ok {
			continue
		}
		var images []json.RawMessage
		if err := json.Unmarshal(raw, &images); err != nil || len(images) == 0 {
			continue
		}

		// formatVersion 1 wraps each URL in an object, version 2 does not
		var wrapped struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := json.Unmarshal(images[0], &wrapped); err == nil && wrapped.ImageURL != "" {
			return wrapped.ImageURL
		}
		var plain string
		if err := json.Unmarshal(images[0], &plain); err == nil && plain != "" {
			return plain
		}
	}
	return ""
}
