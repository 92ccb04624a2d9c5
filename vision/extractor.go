package vision

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"rankwatch/models"
	"rankwatch/utils"
)

// Config bounds the work done per image.
type Config struct {
	// Timeout is the hard deadline for one item, download included.
	Timeout time.Duration
	// MaxBytes caps the downloaded image size.
	MaxBytes int64
	// MaxDimension bounds both sides of the image before pixel analysis.
	MaxDimension int
	// MaxPixels caps width*height of the encoded image; larger images are
	// rejected before decoding.
	MaxPixels int
	// SampleStride keeps every n-th pixel for clustering; 1 keeps all.
	SampleStride int
	// Clusters is the requested number of color clusters, capped by MaxClusters.
	Clusters    int
	MaxClusters int
	// TopColors is how many palette entries are kept per image.
	TopColors     int
	Seed          int64
	MaxIterations int
	// MaxItems limits how many items a batch analyses; 0 means all.
	MaxItems int
	// Retries is the number of download attempts; 1 disables retrying.
	Retries   int
	UserAgent string
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		MaxBytes:      5 << 20,
		MaxDimension:  150,
		MaxPixels:     25_000_000,
		SampleStride:  1,
		Clusters:      5,
		MaxClusters:   5,
		TopColors:     3,
		Seed:          42,
		MaxIterations: 20,
		Retries:       1,
		UserAgent:     "rankwatch/1.0",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = d.MaxDimension
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = d.MaxPixels
	}
	if c.SampleStride <= 0 {
		c.SampleStride = d.SampleStride
	}
	if c.MaxClusters <= 0 {
		c.MaxClusters = d.MaxClusters
	}
	if c.Clusters <= 0 {
		c.Clusters = d.Clusters
	}
	if c.Clusters > c.MaxClusters {
		c.Clusters = c.MaxClusters
	}
	if c.TopColors <= 0 {
		c.TopColors = d.TopColors
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	return c
}

// Extractor downloads item images and derives palette, quality and
// classification features from them.
type Extractor struct {
	logger     *utils.Logger
	cfg        Config
	classifier *Classifier
	client     *http.Client
	pool       *utils.WorkerPool
	retry      *utils.RetryConfig
}

// NewExtractor creates an Extractor. Batches run on pool.
func NewExtractor(logger *utils.Logger, cfg Config, classifier *Classifier, pool *utils.WorkerPool) *Extractor {
	cfg = cfg.withDefaults()
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if pool == nil {
		pool = utils.NewWorkerPool(5, 0)
	}
	return &Extractor{
		logger:     logger,
		cfg:        cfg,
		classifier: classifier,
		client:     &http.Client{Timeout: cfg.Timeout},
		pool:       pool,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.Retries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
		},
	}
}

// Download fetches an image, failing when the response is not 200 or the
// body exceeds MaxBytes.
func (e *Extractor) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: read body: %w", err)
	}
	if int64(len(data)) > e.cfg.MaxBytes {
		return nil, fmt.Errorf("download: image exceeds %d bytes", e.cfg.MaxBytes)
	}
	return data, nil
}

// Analyze extracts features from encoded image bytes. name is the item name
// used for classification. The result is deterministic for identical input.
func (e *Extractor) Analyze(name string, data []byte) (models.VisualAnalysisResult, error) {
	r, _, err := decode(data, e.cfg.MaxDimension, e.cfg.MaxPixels)
	if err != nil {
		return models.VisualAnalysisResult{}, err
	}

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	clusters := kmeans(sample(r.pix, e.cfg.SampleStride), e.cfg.Clusters, e.cfg.MaxIterations, rng)
	palette := buildPalette(clusters, e.cfg.TopColors)

	return models.VisualAnalysisResult{
		Name:           name,
		Colors:         palette,
		Quality:        measureQuality(r),
		Classification: e.classifier.Classify(name, palette, r.origW, r.origH),
		Status:         models.StatusSuccess,
	}, nil
}

// Process runs the full pipeline for one item.
func (e *Extractor) Process(ctx context.Context, item *models.Item) (models.VisualAnalysisResult, error) {
	e.logger.Debug("[vision] %s: %s", item.Code, models.StatusDownloading)
	var data []byte
	err := e.retry.Do(ctx, "image "+item.Code, func() error {
		var err error
		data, err = e.Download(ctx, item.ImageURL)
		return err
	})
	if err != nil {
		return models.VisualAnalysisResult{}, err
	}

	e.logger.Debug("[vision] %s: %s (%d bytes)", item.Code, models.StatusDownsizing, len(data))
	res, err := e.Analyze(item.Name, data)
	if err != nil {
		return models.VisualAnalysisResult{}, err
	}

	res.Code = item.Code
	res.Rank = item.Rank
	res.Price = item.Price
	res.ImageURL = item.ImageURL
	return res, nil
}

// Batch analyses every item with an image URL on the worker pool. A failed
// or timed-out item yields a failed result and never affects the others.
// Results are ordered by rank, then item code.
func (e *Extractor) Batch(items []*models.Item) []models.VisualAnalysisResult {
	targets := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if it.ImageURL == "" {
			continue
		}
		targets = append(targets, it)
		if e.cfg.MaxItems > 0 && len(targets) >= e.cfg.MaxItems {
			break
		}
	}

	tasks := make([]utils.Task[models.VisualAnalysisResult], 0, len(targets))
	for _, it := range targets {
		item := it
		tasks = append(tasks, utils.Task[models.VisualAnalysisResult]{
			Key: item.Code,
			Run: func(ctx context.Context) (models.VisualAnalysisResult, error) {
				return e.Process(ctx, item)
			},
		})
	}

	e.logger.Info("[vision] Analysing %d images with %d workers", len(tasks), e.pool.Size())
	settled, err := utils.RunBatch(e.pool, e.cfg.Timeout, tasks)
	if err != nil {
		// snapshot codes are unique, so this only guards misuse
		e.logger.Error("[vision] %v", err)
		return []models.VisualAnalysisResult{}
	}

	results := make([]models.VisualAnalysisResult, 0, len(targets))
	failed := 0
	for _, it := range targets {
		s := settled[it.Code]
		if s.Err != nil {
			failed++
			e.logger.Warn("[vision] %s failed: %v", it.Code, s.Err)
			results = append(results, FailedResult(it, s.Err))
			continue
		}
		results = append(results, s.Value)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].Code < results[j].Code
	})

	e.logger.Info("[vision] Done: %d succeeded, %d failed", len(results)-failed, failed)
	return results
}

// FailedResult carries the reason and neutral metrics so that a failure does
// not drag aggregates toward zero.
func FailedResult(item *models.Item, err error) models.VisualAnalysisResult {
	return models.VisualAnalysisResult{
		Code:     item.Code,
		Rank:     item.Rank,
		Name:     item.Name,
		Price:    item.Price,
		ImageURL: item.ImageURL,
		Colors:   []models.ColorSample{},
		Quality: models.QualityMetrics{
			Brightness:  0.5,
			Saturation:  0.5,
			Contrast:    0.5,
			Sharpness:   0.5,
			LuxuryScore: 50,
		},
		Classification: models.Classification{
			DominantColor:    UnknownColor,
			MaterialHints:    []string{},
			SizeEstimate:     "unknown",
			ConsistencyScore: 50,
		},
		Status: models.StatusFailed,
		Error:  err.Error(),
	}
}
