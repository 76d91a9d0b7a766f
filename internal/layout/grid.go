/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import "github.com/nupa0w0-hash/MangaGenPro/internal/domain"

// FixedGrid arranges panels as full-width rows in reading order, the
// webtoon strip and four-panel templates. Panels own no free-canvas
// rectangles in this mode; row geometry is derived from panel order and
// size hints alone, so Initialize clears any leftover rectangles (for
// example after switching templates).
type FixedGrid struct {
	Params   Params
	Template domain.PageTemplate
}

// Initialize drops all free-canvas rectangles; the grid derives geometry on
// demand and rectangles would go stale against reordering.
func (e *FixedGrid) Initialize(sb domain.Storyboard) domain.Storyboard {
	out := sb.Clone()
	out.CoverLayout = nil
	for i := range out.Panels {
		out.Panels[i].Layout = nil
	}
	return out
}

// Reset is identical to Initialize for a fixed grid.
func (e *FixedGrid) Reset(sb domain.Storyboard) domain.Storyboard { return e.Initialize(sb) }

// rowHeight returns the height of one grid row for a panel.
// The four-panel template uses uniform rows; the strip follows size hints.
func (e *FixedGrid) rowHeight(hint domain.SizeHint) float64 {
	w := e.Params.contentWidth()
	if e.Template == domain.TemplateFourKoma {
		return w * wideAspect
	}
	switch hint {
	case domain.SizeWide:
		return w * wideAspect
	case domain.SizeTall:
		return w * tallAspect
	default:
		return w
	}
}

// BoundingHeight sums the cover and row heights with gaps, bounded below by
// the minimum canvas height, plus the bottom margin.
func (e *FixedGrid) BoundingHeight(sb domain.Storyboard) float64 {
	p := e.Params
	h := p.Gap
	if sb.HasCover() {
		h += p.contentWidth()*wideAspect + p.Gap
	}
	for _, pr := range sb.Panels {
		h += e.rowHeight(pr.SizeHint) + p.Gap
	}
	if h < p.MinHeight {
		h = p.MinHeight
	}
	return h + p.BottomMargin
}
