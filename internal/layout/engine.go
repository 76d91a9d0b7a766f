/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout computes deterministic placement of cover and panel
// rectangles on a fixed-width canvas and keeps the page bounding height in
// step with every rectangle mutation.
//
// All operations are pure: they take a Storyboard value and return a new one,
// never editing in place. The packing strategy is selected by the page
// template: the free canvas uses a two-column masonry pack, the strip and
// four-panel templates use a fixed grid that owns no per-panel rectangles.
package layout

import "github.com/nupa0w0-hash/MangaGenPro/internal/domain"

// Aspect factors shared by the packer and the fixed grid. A wide cell is
// roughly 16:9, a tall cell roughly 3:4, matching the aspect ratios the
// image backend is asked to render.
const (
	wideAspect = 0.56
	tallAspect = 1.33
)

// Params holds the canvas geometry. All values are in canvas units.
type Params struct {
	CanvasWidth  float64
	Gap          float64
	MinHeight    float64
	BottomMargin float64
}

// DefaultParams returns the page geometry used by the app.
func DefaultParams() Params {
	return Params{CanvasWidth: 672, Gap: 24, MinHeight: 1200, BottomMargin: 48}
}

// normalized fills zero fields with defaults so a zero Params is usable.
func (p Params) normalized() Params {
	d := DefaultParams()
	if p.CanvasWidth <= 0 {
		p.CanvasWidth = d.CanvasWidth
	}
	if p.Gap <= 0 {
		p.Gap = d.Gap
	}
	if p.MinHeight <= 0 {
		p.MinHeight = d.MinHeight
	}
	if p.BottomMargin <= 0 {
		p.BottomMargin = d.BottomMargin
	}
	return p
}

// columnWidth returns the width of one masonry column: two columns and
// three gaps (left, middle, right) span the canvas.
func (p Params) columnWidth() float64 { return (p.CanvasWidth - 3*p.Gap) / 2 }

// contentWidth returns the full-width span used by covers and grid rows.
func (p Params) contentWidth() float64 { return p.CanvasWidth - 2*p.Gap }

// Engine assigns and clears layout rectangles for one page template.
type Engine interface {
	// Initialize assigns a rectangle to every panel lacking one and to the
	// cover if absent. Already-placed panels are never moved, so calling
	// Initialize twice without panel additions is a no-op.
	Initialize(sb domain.Storyboard) domain.Storyboard
	// Reset clears all rectangles and re-runs placement from an empty
	// state, restoring the default arrangement after manual edits.
	Reset(sb domain.Storyboard) domain.Storyboard
	// BoundingHeight returns the page container height: never below the
	// canvas minimum, always clearing the lowest placed rectangle plus the
	// bottom margin.
	BoundingHeight(sb domain.Storyboard) float64
}

// ForTemplate returns the engine for the storyboard's page template.
func ForTemplate(t domain.PageTemplate, p Params) Engine {
	switch t {
	case domain.TemplateWebtoonStrip, domain.TemplateFourKoma:
		return &FixedGrid{Params: p.normalized(), Template: t}
	default:
		return &FreeCanvas{Params: p.normalized()}
	}
}

// For returns the engine matching the storyboard itself.
func For(sb domain.Storyboard, p Params) Engine { return ForTemplate(sb.PageTemplate, p) }
