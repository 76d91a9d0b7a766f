/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a storyboard page to PNG or PDF from the packed
// layout rectangles. Panels whose image handle resolves to a readable local
// file are drawn scaled into their rectangle; everything else gets a
// placeholder fill so partial runs still export a readable page.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strings"

	_ "image/jpeg" // decode panel images saved as JPEG

	xdraw "golang.org/x/image/draw"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

// PNGOptions controls PNG export behavior.
type PNGOptions struct {
	// Scale multiplies canvas units into pixels; 0 means 1.
	Scale float64
}

var (
	pageBackground  = color.RGBA{255, 255, 255, 255}
	panelBorder     = color.RGBA{0, 0, 0, 255}
	placeholderFill = color.RGBA{229, 229, 229, 255}
)

// ExportPNG writes the storyboard page as a single PNG at outPath.
func ExportPNG(sb domain.Storyboard, params layout.Params, outPath string, opt PNGOptions) error {
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	if params.CanvasWidth <= 0 {
		params = layout.DefaultParams()
	}
	cover, panels, height := layout.PageRects(sb, params)
	pixW := int(math.Round(params.CanvasWidth * scale))
	pixH := int(math.Round(height * scale))
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{C: pageBackground}, image.Point{}, xdraw.Src)

	if cover != nil {
		drawPanel(img, *cover, sb.CoverImageRef, scale)
	}
	for _, p := range zOrdered(sb.Panels, panels) {
		drawPanel(img, p.rect, p.imageRef, scale)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

type placedPanel struct {
	rect     domain.Rect
	imageRef string
}

// zOrdered returns drawable panels in ascending z-order so a raised panel
// paints over its siblings, matching the on-canvas stacking.
func zOrdered(records []domain.PanelRecord, rects map[int]domain.Rect) []placedPanel {
	out := make([]placedPanel, 0, len(records))
	for _, pr := range records {
		r, ok := rects[pr.ID]
		if !ok {
			continue
		}
		out = append(out, placedPanel{rect: r, imageRef: pr.ImageRef})
	}
	// insertion sort keeps authored order among equal z-indexes
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].rect.ZIndex < out[j-1].rect.ZIndex; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func drawPanel(img *image.RGBA, r domain.Rect, imageRef string, scale float64) {
	x0 := int(math.Round(r.X * scale))
	y0 := int(math.Round(r.Y * scale))
	x1 := int(math.Round((r.X+r.Width)*scale)) - 1
	y1 := int(math.Round((r.Y+r.Height)*scale)) - 1
	if x1 <= x0 || y1 <= y0 {
		return
	}
	box := image.Rect(x0, y0, x1+1, y1+1)

	if src := resolveImage(imageRef); src != nil {
		xdraw.CatmullRom.Scale(img, box, src, src.Bounds(), xdraw.Src, nil)
	} else {
		xdraw.Draw(img, box, &image.Uniform{C: placeholderFill}, image.Point{}, xdraw.Src)
	}
	strokeRect(img, x0, y0, x1, y1, panelBorder)
}

// resolveImage decodes an image handle that points at a readable local
// file. Remote or opaque handles return nil and draw as placeholders.
func resolveImage(ref string) image.Image {
	path := strings.TrimPrefix(ref, "file://")
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil
	}
	return src
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}
