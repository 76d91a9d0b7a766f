/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import "github.com/nupa0w0-hash/MangaGenPro/internal/domain"

// FreeCanvas packs panels into a two-column masonry grid: each non-wide
// panel drops into the currently shorter column (ties favor column 0), wide
// panels span both columns and level them first. This is a first-fit
// shortest-column pack: predictable and O(n), not a minimal-area solver.
type FreeCanvas struct {
	Params Params
}

// Initialize places the cover (if present and unplaced) and every panel
// without a rectangle, in authored order. Panels that already own a
// rectangle keep it untouched and still count toward column heights through
// their original placement only if they were packed before; manually moved
// panels do not disturb the pack of newcomers beyond their placement order.
func (e *FreeCanvas) Initialize(sb domain.Storyboard) domain.Storyboard {
	p := e.Params
	out := sb.Clone()

	gap := p.Gap
	colW := p.columnWidth()
	colX := [2]float64{gap, gap + colW + gap}
	colH := [2]float64{gap, gap}

	// Cover goes full-width at the top and pushes both columns down.
	if out.HasCover() && out.CoverLayout == nil {
		w := p.contentWidth()
		h := w * wideAspect
		if out.CoverAspect == domain.CoverPortrait {
			h = w * tallAspect
		}
		out.CoverLayout = &domain.Rect{X: gap, Y: gap, Width: w, Height: h}
		colH[0] = gap + h + gap
		colH[1] = colH[0]
	} else if out.CoverLayout != nil {
		// Re-running with a placed cover: resume below it.
		bottom := out.CoverLayout.Bottom() + gap
		if bottom > colH[0] {
			colH[0] = bottom
			colH[1] = bottom
		}
	}

	for i := range out.Panels {
		pr := &out.Panels[i]
		if pr.Layout != nil {
			// Idempotence: re-running initialization never moves a
			// placed panel, but its extent still advances the pack.
			col := 0
			if pr.Layout.X >= colX[1] {
				col = 1
			}
			bottom := pr.Layout.Bottom() + gap
			if pr.Layout.Width > colW+gap/2 {
				// spans both columns
				if bottom > colH[0] {
					colH[0] = bottom
				}
				if bottom > colH[1] {
					colH[1] = bottom
				}
			} else if bottom > colH[col] {
				colH[col] = bottom
			}
			continue
		}

		switch pr.SizeHint {
		case domain.SizeWide:
			// Level both columns before placing so the spanning
			// rectangle cannot overlap the shorter column.
			y := colH[0]
			if colH[1] > y {
				y = colH[1]
			}
			r := domain.Rect{X: colX[0], Y: y, Width: 2*colW + gap, Height: colW * wideAspect}
			pr.Layout = &r
			colH[0] = y + r.Height + gap
			colH[1] = colH[0]
		case domain.SizeTall:
			col := shorterColumn(colH)
			r := domain.Rect{X: colX[col], Y: colH[col], Width: colW, Height: colW * tallAspect}
			pr.Layout = &r
			colH[col] += r.Height + gap
		default: // square
			col := shorterColumn(colH)
			r := domain.Rect{X: colX[col], Y: colH[col], Width: colW, Height: colW}
			pr.Layout = &r
			colH[col] += r.Height + gap
		}
	}
	return out
}

// Reset clears every rectangle (cover included) and packs again from empty.
func (e *FreeCanvas) Reset(sb domain.Storyboard) domain.Storyboard {
	out := sb.Clone()
	out.CoverLayout = nil
	for i := range out.Panels {
		out.Panels[i].Layout = nil
	}
	return e.Initialize(out)
}

// BoundingHeight is max(minimum canvas height, lowest rectangle bottom edge)
// plus the bottom margin. With zero placed rectangles this degrades to the
// minimum canvas height plus margin.
func (e *FreeCanvas) BoundingHeight(sb domain.Storyboard) float64 {
	p := e.Params
	low := p.MinHeight
	if sb.CoverLayout != nil && sb.CoverLayout.Bottom() > low {
		low = sb.CoverLayout.Bottom()
	}
	for _, pr := range sb.Panels {
		if pr.Layout != nil && pr.Layout.Bottom() > low {
			low = pr.Layout.Bottom()
		}
	}
	return low + p.BottomMargin
}

// shorterColumn picks the column with the lower height; ties favor column 0.
func shorterColumn(colH [2]float64) int {
	if colH[1] < colH[0] {
		return 1
	}
	return 0
}
