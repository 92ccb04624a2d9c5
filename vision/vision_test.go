package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/services"
	"rankwatch/utils"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func uniformImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// splitImage has the left half in a and the right half in b.
func splitImage(w, h int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
		}
	}
	return img
}

func noisyImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*37 + y*91 + x*y*13) % 256)
			img.SetRGBA(x, y, color.RGBA{v, uint8(255 - int(v)), uint8((int(v) * 7) % 256), 255})
		}
	}
	return img
}

func newTestExtractor(cfg Config) *Extractor {
	return NewExtractor(utils.NewDiscardLogger(), cfg, NewClassifier(config.DefaultCatalog()), utils.NewWorkerPool(4, 0))
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAnalyzeUniformImage(t *testing.T) {
	data := encodePNG(t, uniformImage(40, 40, color.RGBA{200, 30, 30, 255}))

	res, err := newTestExtractor(DefaultConfig()).Analyze("赤 スーツケース ハード", data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(res.Colors) != 1 {
		t.Fatalf("palette size: got %d, want 1", len(res.Colors))
	}
	c := res.Colors[0]
	if c.Percentage != 100 || c.Hex != "#c81e1e" || c.Name != "red" {
		t.Errorf("palette entry: got %+v", c)
	}

	q := res.Quality
	if !almostEqual(q.Brightness, 0.317) {
		t.Errorf("Brightness: got %v, want 0.317", q.Brightness)
	}
	if !almostEqual(q.Saturation, 0.667) {
		t.Errorf("Saturation: got %v, want 0.667", q.Saturation)
	}
	if q.Contrast != 0 || q.Sharpness != 0 {
		t.Errorf("Contrast/Sharpness: got %v/%v, want 0/0", q.Contrast, q.Sharpness)
	}
	if !almostEqual(q.LuxuryScore, 20) {
		t.Errorf("LuxuryScore: got %v, want 20", q.LuxuryScore)
	}

	cls := res.Classification
	if cls.DominantColor != "red" || cls.SizeEstimate != "standard" {
		t.Errorf("classification: got %+v", cls)
	}
	if cls.ConsistencyScore != 100 {
		t.Errorf("ConsistencyScore: got %v, want 100", cls.ConsistencyScore)
	}
	if res.Status != models.StatusSuccess {
		t.Errorf("Status: got %s", res.Status)
	}
}

func TestAnalyzeTwoColorImage(t *testing.T) {
	data := encodePNG(t, splitImage(60, 20, color.RGBA{20, 20, 20, 255}, color.RGBA{245, 245, 245, 255}))

	res, err := newTestExtractor(DefaultConfig()).Analyze("case", data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Colors) != 2 {
		t.Fatalf("palette size: got %d, want 2", len(res.Colors))
	}
	if res.Colors[0].Percentage != 50 || res.Colors[1].Percentage != 50 {
		t.Errorf("percentages: got %v, %v", res.Colors[0].Percentage, res.Colors[1].Percentage)
	}
	// equal shares are ordered by hex
	if res.Colors[0].Name != "black" || res.Colors[1].Name != "white" {
		t.Errorf("names: got %s, %s", res.Colors[0].Name, res.Colors[1].Name)
	}
	if res.Classification.SizeEstimate != "unusual" {
		t.Errorf("SizeEstimate: got %s, want unusual", res.Classification.SizeEstimate)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	data := encodePNG(t, noisyImage(300, 200))
	ex := newTestExtractor(DefaultConfig())

	first, err := ex.Analyze("x", data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := ex.Analyze("x", data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(first.Colors) != len(second.Colors) {
		t.Fatalf("palette sizes differ: %d vs %d", len(first.Colors), len(second.Colors))
	}
	for i := range first.Colors {
		if first.Colors[i] != second.Colors[i] {
			t.Errorf("color %d: %+v vs %+v", i, first.Colors[i], second.Colors[i])
		}
	}
	if first.Quality != second.Quality {
		t.Errorf("quality differs: %+v vs %+v", first.Quality, second.Quality)
	}
}

func TestAnalyzeBounds(t *testing.T) {
	data := encodePNG(t, noisyImage(320, 240))
	res, err := newTestExtractor(DefaultConfig()).Analyze("x", data)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var sum float64
	for _, c := range res.Colors {
		if c.Percentage < 0 || c.Percentage > 100 {
			t.Errorf("percentage out of range: %v", c.Percentage)
		}
		sum += c.Percentage
	}
	if sum > 100.05 {
		t.Errorf("palette sums to %v", sum)
	}
	if len(res.Colors) > 3 {
		t.Errorf("palette not truncated: %d entries", len(res.Colors))
	}
	q := res.Quality
	for name, v := range map[string]float64{"brightness": q.Brightness, "saturation": q.Saturation, "contrast": q.Contrast, "sharpness": q.Sharpness} {
		if v < 0 || v > 1 {
			t.Errorf("%s out of [0,1]: %v", name, v)
		}
	}
	if q.LuxuryScore < 0 || q.LuxuryScore > 100 {
		t.Errorf("LuxuryScore out of range: %v", q.LuxuryScore)
	}
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	if _, err := newTestExtractor(DefaultConfig()).Analyze("x", []byte("not an image")); err == nil {
		t.Error("expected a decode error")
	}
}

// pngHeader returns a PNG made of the signature and an RGB IHDR chunk only:
// enough for DecodeConfig, nothing to decode.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestAnalyzeRejectsOversizedImage(t *testing.T) {
	data := pngHeader(10000, 10000)
	_, err := newTestExtractor(DefaultConfig()).Analyze("x", data)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("err: got %v, want pixel limit error", err)
	}

	palette := color.Palette{color.RGBA{200, 30, 30, 255}, color.RGBA{20, 20, 20, 255}}
	small := encodePNG(t, image.NewPaletted(image.Rect(0, 0, 200, 200), palette))

	cfg := DefaultConfig()
	cfg.MaxPixels = 100 * 100
	if _, err := newTestExtractor(cfg).Analyze("x", small); err == nil {
		t.Error("200x200 image should exceed a 10000 pixel budget")
	}

	cfg.MaxPixels = 200 * 200
	if _, err := newTestExtractor(cfg).Analyze("x", small); err != nil {
		t.Errorf("image at the budget should be accepted: %v", err)
	}
}

func TestBatchOversizedImageFails(t *testing.T) {
	okData := encodePNG(t, uniformImage(10, 10, color.RGBA{20, 20, 20, 255}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big.png" {
			w.Write(pngHeader(10000, 10000))
			return
		}
		w.Write(okData)
	}))
	defer srv.Close()

	items := []*models.Item{
		{Code: "big", Rank: 1, Name: "big", ImageURL: srv.URL + "/big.png"},
		{Code: "ok", Rank: 2, Name: "ok", ImageURL: srv.URL + "/ok.png"},
	}
	results := newTestExtractor(DefaultConfig()).Batch(items)
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].Status != models.StatusFailed {
		t.Errorf("big: got %s, want failed", results[0].Status)
	}
	if results[1].Status != models.StatusSuccess {
		t.Errorf("ok: got %s, want success (%s)", results[1].Status, results[1].Error)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 80, 150, 100, 80},
		{600, 300, 150, 150, 75},
		{300, 600, 150, 75, 150},
		{1000, 2, 150, 150, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = %d, %d; want %d, %d", tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestSizeEstimate(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{100, 100, "standard"},
		{110, 100, "standard"},
		{150, 100, "elongated"},
		{100, 190, "elongated"},
		{300, 100, "unusual"},
		{0, 100, "unknown"},
	}
	for _, tt := range tests {
		if got := sizeEstimate(tt.w, tt.h); got != tt.want {
			t.Errorf("sizeEstimate(%d, %d) = %s; want %s", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestClassifyConsistency(t *testing.T) {
	c := NewClassifier(config.DefaultCatalog())
	black := []models.ColorSample{{Name: "black", Percentage: 80}}

	tests := []struct {
		name string
		want float64
	}{
		{"スーツケース", 50},
		{"ブラック スーツケース", 75},
		{"レザー トランク", 75},
		{"Black leather trunk", 100},
		{"ホワイト スーツケース", 50},
	}
	for _, tt := range tests {
		got := c.Classify(tt.name, black, 100, 100).ConsistencyScore
		if got != tt.want {
			t.Errorf("Classify(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}

	empty := c.Classify("x", nil, 100, 100)
	if empty.DominantColor != UnknownColor || len(empty.MaterialHints) != 0 {
		t.Errorf("empty palette: got %+v", empty)
	}
}

func TestDownloadSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0xff}, 2048))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxBytes = 1024
	_, err := newTestExtractor(cfg).Download(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("err: got %v, want size cap error", err)
	}

	cfg.MaxBytes = 4096
	data, err := newTestExtractor(cfg).Download(context.Background(), srv.URL)
	if err != nil || len(data) != 2048 {
		t.Errorf("download under cap: got %d bytes, err %v", len(data), err)
	}
}

func TestDownloadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := newTestExtractor(DefaultConfig()).Download(context.Background(), srv.URL); err == nil {
		t.Error("expected an error for 404")
	}
}

func TestBatchIsolatesFailures(t *testing.T) {
	good := encodePNG(t, uniformImage(10, 10, color.RGBA{25, 35, 90, 255}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.png":
			w.Write(good)
		case "/slow.png":
			time.Sleep(500 * time.Millisecond)
			w.Write(good)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	items := []*models.Item{
		{Rank: 3, Code: "c", Name: "ネイビー", ImageURL: srv.URL + "/good.png"},
		{Rank: 1, Code: "a", Name: "broken", ImageURL: srv.URL + "/broken.png"},
		{Rank: 2, Code: "b", Name: "slow", ImageURL: srv.URL + "/slow.png"},
		{Rank: 4, Code: "d", Name: "no image"},
	}

	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	results := newTestExtractor(cfg).Batch(items)

	if len(results) != 3 {
		t.Fatalf("results: got %d, want 3", len(results))
	}
	wantCodes := []string{"a", "b", "c"}
	for i, code := range wantCodes {
		if results[i].Code != code {
			t.Errorf("position %d: got %s, want %s", i, results[i].Code, code)
		}
	}
	for _, r := range results[:2] {
		if r.Status != models.StatusFailed || r.Error == "" {
			t.Errorf("%s: expected failure with reason, got %s", r.Code, r.Status)
		}
		if r.Quality.LuxuryScore != 50 || r.Classification.DominantColor != UnknownColor {
			t.Errorf("%s: expected neutral metrics, got %+v", r.Code, r.Quality)
		}
	}
	if results[2].Status != models.StatusSuccess || results[2].Classification.DominantColor != "navy" {
		t.Errorf("good item: got %+v", results[2])
	}
	if results[2].Rank != 3 || results[2].ImageURL == "" {
		t.Errorf("identity not carried over: %+v", results[2])
	}
}

func TestBatchMaxItems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxItems = 1
	items := []*models.Item{
		{Rank: 1, Code: "a", ImageURL: "http://127.0.0.1:1/a.png"},
		{Rank: 2, Code: "b", ImageURL: "http://127.0.0.1:1/b.png"},
	}
	results := newTestExtractor(cfg).Batch(items)
	if len(results) != 1 || results[0].Code != "a" {
		t.Errorf("results: got %+v", results)
	}
}

func TestBuildReport(t *testing.T) {
	item := &models.Item{Rank: 1, Code: "x", Name: "x"}
	ok := models.VisualAnalysisResult{Code: "a", Rank: 2, Status: models.StatusSuccess,
		Colors: []models.ColorSample{{Name: "black", Percentage: 100}}, Quality: models.QualityMetrics{LuxuryScore: 40}}
	results := []models.VisualAnalysisResult{ok, FailedResult(item, context.DeadlineExceeded)}

	insights := services.NewInsightService(utils.NewDiscardLogger(), config.DefaultCatalog())
	report := BuildReport(insights, 10, results, time.Now().Add(-time.Second))

	m := report.Metadata
	if m.TotalItems != 10 || m.AnalyzedItems != 2 || m.SuccessCount != 1 || m.SuccessRate != 50 {
		t.Errorf("metadata: got %+v", m)
	}
	if m.ElapsedSeconds < 1 {
		t.Errorf("ElapsedSeconds: got %v", m.ElapsedSeconds)
	}
	if report.Statistics.Analyzed != 1 {
		t.Errorf("statistics should only count successes, got %d", report.Statistics.Analyzed)
	}
}
