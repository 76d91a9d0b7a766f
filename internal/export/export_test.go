/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

func exportBoard() domain.Storyboard {
	return domain.Storyboard{
		Title:        "export me",
		PageTemplate: domain.TemplateFreeCanvas,
		Panels: []domain.PanelRecord{
			{ID: 1, SizeHint: domain.SizeWide, Status: domain.StatusFailed},
			{ID: 2, SizeHint: domain.SizeSquare, Status: domain.StatusPending},
			{ID: 3, SizeHint: domain.SizeTall, Status: domain.StatusPending},
		},
	}
}

// writePanelImage creates a small solid-red PNG to stand in for a rendered panel.
func writePanelImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{200, 0, 0, 255})
		}
	}
	path := filepath.Join(dir, "panel.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.Close()
	return path
}

func TestExportPNGDimensions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "page.png")
	if err := ExportPNG(exportBoard(), layout.DefaultParams(), out, PNGOptions{}); err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// canvas width 672 at scale 1; three small panels stay under the
	// minimum height 1200 plus margin 48
	if cfg.Width != 672 || cfg.Height != 1248 {
		t.Errorf("dimensions = %dx%d, want 672x1248", cfg.Width, cfg.Height)
	}
}

func TestExportPNGDrawsImagesAndPlaceholders(t *testing.T) {
	dir := t.TempDir()
	imgPath := writePanelImage(t, dir)

	sb := exportBoard()
	sb.Panels[0].Status = domain.StatusCompleted
	sb.Panels[0].ImageRef = imgPath

	out := filepath.Join(dir, "page.png")
	if err := ExportPNG(sb, layout.DefaultParams(), out, PNGOptions{}); err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	page, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// wide panel 1 occupies (24,24)-(648,192); probe its interior
	if got := page.At(300, 100); !isReddish(got) {
		t.Errorf("panel image not drawn, pixel = %v", got)
	}
	// square panel 2 at (24,216) has no image and draws the placeholder
	if r, g, b, _ := page.At(100, 300).RGBA(); r>>8 != 229 || g>>8 != 229 || b>>8 != 229 {
		t.Errorf("placeholder pixel = %v", page.At(100, 300))
	}
}

func isReddish(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 150 && g>>8 < 80 && b>>8 < 80
}

func TestExportPNGGridTemplate(t *testing.T) {
	sb := exportBoard()
	sb.PageTemplate = domain.TemplateFourKoma
	out := filepath.Join(t.TempDir(), "strip.png")
	if err := ExportPNG(sb, layout.DefaultParams(), out, PNGOptions{}); err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 24 + 3 uniform rows of 624*0.56 ≈ 349.44 each with trailing gaps,
	// below the minimum, so the floor applies: 1200 + 48
	if cfg.Width != 672 || cfg.Height != 1248 {
		t.Errorf("dimensions = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExportPDF(t *testing.T) {
	dir := t.TempDir()
	imgPath := writePanelImage(t, dir)
	sb := exportBoard()
	sb.Panels[0].Status = domain.StatusCompleted
	sb.Panels[0].ImageRef = imgPath

	out := filepath.Join(dir, "page.pdf")
	if err := ExportPDF(sb, layout.DefaultParams(), out, PDFOptions{}); err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(body) < 4 || string(body[:4]) != "%PDF" {
		t.Errorf("output is not a PDF (%d bytes)", len(body))
	}
}
