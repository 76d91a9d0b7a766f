/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import "github.com/nupa0w0-hash/MangaGenPro/internal/domain"

// PageRects resolves a concrete rectangle for the cover and every panel,
// regardless of template. The free canvas packs unplaced panels first (a
// no-op for placed ones); grid templates derive row geometry on the fly
// since their panels own no rectangles. Used by export, which needs pixels
// for every panel.
func PageRects(sb domain.Storyboard, p Params) (cover *domain.Rect, panels map[int]domain.Rect, height float64) {
	p = p.normalized()
	panels = make(map[int]domain.Rect, len(sb.Panels))

	switch sb.PageTemplate {
	case domain.TemplateWebtoonStrip, domain.TemplateFourKoma:
		g := &FixedGrid{Params: p, Template: sb.PageTemplate}
		w := p.contentWidth()
		y := p.Gap
		if sb.HasCover() {
			cover = &domain.Rect{X: p.Gap, Y: y, Width: w, Height: w * wideAspect}
			y += cover.Height + p.Gap
		}
		for _, pr := range sb.Panels {
			h := g.rowHeight(pr.SizeHint)
			panels[pr.ID] = domain.Rect{X: p.Gap, Y: y, Width: w, Height: h}
			y += h + p.Gap
		}
		return cover, panels, g.BoundingHeight(sb)
	default:
		eng := For(sb, p)
		work := eng.Initialize(sb)
		if work.CoverLayout != nil {
			r := *work.CoverLayout
			cover = &r
		}
		for _, pr := range work.Panels {
			if pr.Layout != nil {
				panels[pr.ID] = *pr.Layout
			}
		}
		return cover, panels, eng.BoundingHeight(work)
	}
}
