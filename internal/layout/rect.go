/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"fmt"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
)

// RectDelta is a partial rectangle update from a drag, resize or rotate
// gesture. Nil fields are left untouched by the merge.
type RectDelta struct {
	X        *float64
	Y        *float64
	Width    *float64
	Height   *float64
	Rotation *float64
}

// Merge applies the delta onto r and returns the result.
func (d RectDelta) Merge(r domain.Rect) domain.Rect {
	if d.X != nil {
		r.X = *d.X
	}
	if d.Y != nil {
		r.Y = *d.Y
	}
	if d.Width != nil {
		r.Width = *d.Width
	}
	if d.Height != nil {
		r.Height = *d.Height
	}
	if d.Rotation != nil {
		r.Rotation = *d.Rotation
	}
	return r
}

// UpdateRect merges a partial rectangle update into the panel's existing
// rectangle. Siblings are not re-packed: manual placement is free-form and
// overlaps are the user's own arrangement. The panel must already be placed.
func UpdateRect(sb domain.Storyboard, panelID int, delta RectDelta) (domain.Storyboard, error) {
	i := sb.PanelIndex(panelID)
	if i < 0 {
		return sb, fmt.Errorf("panel %d not found", panelID)
	}
	if sb.Panels[i].Layout == nil {
		return sb, fmt.Errorf("panel %d has no layout rectangle", panelID)
	}
	out := sb.Clone()
	merged := delta.Merge(*out.Panels[i].Layout)
	out.Panels[i].Layout = &merged
	return out, nil
}

// UpdateCoverRect merges a partial update into the cover rectangle.
func UpdateCoverRect(sb domain.Storyboard, delta RectDelta) (domain.Storyboard, error) {
	if sb.CoverLayout == nil {
		return sb, fmt.Errorf("cover has no layout rectangle")
	}
	out := sb.Clone()
	merged := delta.Merge(*out.CoverLayout)
	out.CoverLayout = &merged
	return out, nil
}

// BringToFront raises the panel above every other placed rectangle by
// setting its zIndex to the current maximum plus one. Other z-indices are
// left unchanged.
func BringToFront(sb domain.Storyboard, panelID int) (domain.Storyboard, error) {
	i := sb.PanelIndex(panelID)
	if i < 0 {
		return sb, fmt.Errorf("panel %d not found", panelID)
	}
	if sb.Panels[i].Layout == nil {
		return sb, fmt.Errorf("panel %d has no layout rectangle", panelID)
	}
	out := sb.Clone()
	out.Panels[i].Layout.ZIndex = out.MaxZIndex() + 1
	return out, nil
}

// Float64 is a convenience for building RectDelta literals.
func Float64(v float64) *float64 { return &v }
