/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package board holds the storyboard reducer: every mutation (layout
// update, status transition, panel add/remove) is a pure function
// (Storyboard, Action) -> Storyboard, dispatched through one serializing
// Store. Suspended operations (backend calls in flight) re-read the current
// state at dispatch time, so a delayed result can never clobber manual edits
// made while it was waiting, and results for panels that no longer exist are
// dropped instead of resurrecting stale data.
package board

import (
	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

// Action is one storyboard mutation. The concrete types below are the full
// action vocabulary; Reduce rejects anything else.
type Action interface{ actionName() string }

// ReplaceBoard installs a freshly generated storyboard wholesale (script
// generation succeeded or a saved draft was loaded).
type ReplaceBoard struct{ Board domain.Storyboard }

// SetPanelStatus moves a panel along the status state machine.
type SetPanelStatus struct {
	ID     int
	Status domain.Status
}

// SetPanelImage completes a generating panel with its image handle.
type SetPanelImage struct {
	ID       int
	ImageRef string
}

// SetPanelScript replaces a panel's textual script fields (reroll),
// preserving its id, clearing any image and resetting it to pending.
type SetPanelScript struct {
	ID    int
	Panel domain.ScriptPanel
}

// SetCoverImage records the generated cover image handle.
type SetCoverImage struct{ ImageRef string }

// AddPanel appends an empty pending panel with the next free id.
type AddPanel struct{ SizeHint domain.SizeHint }

// RemovePanel deletes a panel by id.
type RemovePanel struct{ ID int }

// InitializeLayout assigns rectangles to unplaced panels and the cover.
type InitializeLayout struct{}

// ResetLayout clears all rectangles and re-packs from size hints alone.
type ResetLayout struct{}

// UpdateRect merges a partial rectangle update into one panel (drag/resize).
type UpdateRect struct {
	ID    int
	Delta layout.RectDelta
}

// UpdateCoverRect merges a partial rectangle update into the cover.
type UpdateCoverRect struct{ Delta layout.RectDelta }

// BringToFront raises a panel above all other placed rectangles.
type BringToFront struct{ ID int }

// SetPageTemplate switches the page arrangement mode and re-initializes
// layout under the new template's engine.
type SetPageTemplate struct{ Template domain.PageTemplate }

func (ReplaceBoard) actionName() string     { return "replace_board" }
func (SetPanelStatus) actionName() string   { return "set_panel_status" }
func (SetPanelImage) actionName() string    { return "set_panel_image" }
func (SetPanelScript) actionName() string   { return "set_panel_script" }
func (SetCoverImage) actionName() string    { return "set_cover_image" }
func (AddPanel) actionName() string         { return "add_panel" }
func (RemovePanel) actionName() string      { return "remove_panel" }
func (InitializeLayout) actionName() string { return "initialize_layout" }
func (ResetLayout) actionName() string      { return "reset_layout" }
func (UpdateRect) actionName() string       { return "update_rect" }
func (UpdateCoverRect) actionName() string  { return "update_cover_rect" }
func (BringToFront) actionName() string     { return "bring_to_front" }
func (SetPageTemplate) actionName() string  { return "set_page_template" }
