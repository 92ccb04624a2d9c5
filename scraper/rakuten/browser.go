package rakuten

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

const (
	rankingPageURL = "https://ranking.rakuten.co.jp/daily/%d/p=%d/"
	browserSource  = "rakuten-ranking-page"
)

// BrowserClient reads the public daily ranking pages with headless Chrome.
// It is the fallback when no API application id is available.
type BrowserClient struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig
	seen   *utils.KeySet
}

// NewBrowserClient creates a BrowserClient.
func NewBrowserClient(cfg *config.Config, logger *utils.Logger) *BrowserClient {
	return &BrowserClient{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		seen: utils.NewKeySet(),
	}
}

type rankingCard struct {
	Rank   string `json:"rank"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Review string `json:"review"`
	Count  string `json:"count"`
	URL    string `json:"url"`
	Image  string `json:"image"`
}

// Fetch loads pages 1..pages sequentially. A page that fails after retries
// aborts the fetch.
func (b *BrowserClient) Fetch(ctx context.Context, pages int) ([]*models.RawItem, error) {
	chromeBin := findChromeBinary(b.cfg.ChromeBin)
	b.logger.Info("[rakuten] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var rows []*models.RawItem
	for page := 1; page <= pages; page++ {
		pageURL := fmt.Sprintf(rankingPageURL, b.cfg.GenreID, page)
		b.logger.Info("[rakuten] Loading ranking page %d — URL: %s", page, pageURL)

		var cards []rankingCard
		err := b.retry.Do(ctx, fmt.Sprintf("ranking-page-%d", page), func() error {
			var err error
			cards, err = b.scrapePage(browserCtx, pageURL)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("rakuten: page %d: %w", page, err)
		}
		if len(cards) == 0 {
			b.logger.Warn("[rakuten] Page %d returned 0 items — stopping", page)
			break
		}

		now := time.Now()
		for _, c := range cards {
			code := itemCodeFromURL(c.URL)
			if code == "" || !b.seen.Add(code) {
				continue
			}
			rank := c.Rank
			if rank == "" {
				rank = strconv.Itoa(len(rows) + 1)
			}
			rows = append(rows, &models.RawItem{
				Rank:          rank,
				ItemCode:      code,
				ItemName:      c.Name,
				ItemPrice:     c.Price,
				ReviewAverage: c.Review,
				ReviewCount:   c.Count,
				ItemURL:       c.URL,
				ImageURL:      c.Image,
				FetchedAt:     now,
				Source:        browserSource,
			})
		}

		b.logger.Info("[rakuten] Page %d done — collected %d items so far", page, len(rows))
		time.Sleep(time.Duration(b.cfg.RateLimitMs) * time.Millisecond)
	}

	b.logger.Info("[rakuten] Browser fetch finished — %d unique items seen", b.seen.Size())
	return rows, nil
}

func (b *BrowserClient) scrapePage(browserCtx context.Context, pageURL string) ([]rankingCard, error) {
	ctx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
	defer cancelTimeout()

	var cards []rankingCard
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(4*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),

		chromedp.Evaluate(`
			(function() {
				var results = [];
				var boxes = document.querySelectorAll('div.rnkRanking_itemBox, div[class*="rnkRanking_item"]');
				for (var i = 0; i < boxes.length; i++) {
					var box = boxes[i];
					var link = box.querySelector('a[href*="item.rakuten.co.jp"]');
					if (!link) continue;

					var rankEl = box.querySelector('[class*="rnkRanking_dispRank"]');
					var nameEl = box.querySelector('[class*="rnkRanking_itemName"]');
					var priceEl = box.querySelector('[class*="rnkRanking_price"]');
					var reviewEl = box.querySelector('[class*="rnkRanking_starON"], [class*="rnkRanking_reviewStar"]');
					var countEl = box.querySelector('[class*="rnkRanking_reviewCount"], a[href*="review.rakuten.co.jp"]');
					var img = box.querySelector('img');

					var reviewText = reviewEl ? (reviewEl.innerText || reviewEl.getAttribute('title') || '') : '';
					var reviewMatch = reviewText.match(/(\d(\.\d+)?)/);

					results.push({
						rank:   rankEl ? rankEl.innerText.replace(/[^\d]/g, '') : '',
						name:   nameEl ? nameEl.innerText.trim() : link.innerText.trim(),
						price:  priceEl ? priceEl.innerText.trim() : '',
						review: reviewMatch ? reviewMatch[1] : '',
						count:  countEl ? countEl.innerText.replace(/[^\d]/g, '') : '',
						url:    link.href,
						image:  img ? (img.getAttribute('src') || '') : ''
					});
				}
				return results;
			})()
		`, &cards),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp ranking extract: %w", err)
	}
	return cards, nil
}

// itemCodeFromURL derives the API-style "shop:item" code from an item URL
// such as https://item.rakuten.co.jp/shop/item-id/.
func itemCodeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(u.Host, "item.rakuten.co.jp") {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + ":" + parts[1]
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
