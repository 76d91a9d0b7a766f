/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

// PDFOptions controls PDF export behavior. Units are points: one canvas
// unit maps to one point, so a 672-unit canvas becomes a 672pt-wide page.
type PDFOptions struct {
	// Title printed in the document metadata; the storyboard title is used
	// when empty.
	Title string
}

// ExportPDF writes the storyboard as a single-page PDF at outPath. Panels
// with a resolvable local image are embedded; the rest are drawn as filled
// placeholder rectangles with their panel number.
func ExportPDF(sb domain.Storyboard, params layout.Params, outPath string, opt PDFOptions) error {
	if params.CanvasWidth <= 0 {
		params = layout.DefaultParams()
	}
	cover, panels, height := layout.PageRects(sb, params)

	title := opt.Title
	if title == "" {
		title = sb.Title
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: params.CanvasWidth, Ht: height},
	})
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	if cover != nil {
		drawPDFPanel(pdf, *cover, sb.CoverImageRef, "cover")
	}
	for _, pr := range sb.Panels {
		r, ok := panels[pr.ID]
		if !ok {
			continue
		}
		drawPDFPanel(pdf, r, pr.ImageRef, fmt.Sprintf("%d", pr.ID))
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawPDFPanel(pdf *gofpdf.Fpdf, r domain.Rect, imageRef, label string) {
	if path, ok := embeddableImage(imageRef); ok {
		pdf.ImageOptions(path, r.X, r.Y, r.Width, r.Height, false,
			gofpdf.ImageOptions{ReadDpi: false}, 0, "")
	} else {
		pdf.SetFillColor(229, 229, 229)
		pdf.Rect(r.X, r.Y, r.Width, r.Height, "F")
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(r.X+6, r.Y+14, label)
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.Rect(r.X, r.Y, r.Width, r.Height, "D")
}

// embeddableImage reports whether an image handle points at a local file in
// a format gofpdf can register.
func embeddableImage(ref string) (string, bool) {
	path := strings.TrimPrefix(ref, "file://")
	if path == "" {
		return "", false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif":
	default:
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
