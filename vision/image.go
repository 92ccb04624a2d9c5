package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// raster is a downsized image held as row-major RGB triples.
type raster struct {
	width, height int
	origW, origH  int
	pix           [][3]float64
}

func (r *raster) at(x, y int) [3]float64 {
	return r.pix[y*r.width+x]
}

// decode reads any registered image format and shrinks it so that neither
// side exceeds maxDim. Alpha is dropped. Images with more than maxPixels
// pixels are rejected from their header, before any pixel is decoded.
func decode(data []byte, maxDim, maxPixels int) (*raster, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, fmt.Errorf("decode image: %dx%d %s exceeds %d pixels",
			cfg.Width, cfg.Height, format, maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, fmt.Errorf("decode image: empty %s image", format)
	}

	w, h := fitWithin(b.Dx(), b.Dy(), maxDim)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	r := &raster{width: w, height: h, origW: b.Dx(), origH: b.Dy(), pix: make([][3]float64, 0, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(dst.At(x, y)).(color.NRGBA)
			r.pix = append(r.pix, [3]float64{float64(c.R), float64(c.G), float64(c.B)})
		}
	}
	return r, format, nil
}

// fitWithin scales (w, h) down to fit a maxDim box keeping the aspect ratio.
func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
