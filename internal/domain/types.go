/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for MangaGen Pro: the storyboard and
// its panels. A Storyboard is a value; mutations go through the board reducer,
// which clones before editing, so none of these types carry behavior beyond
// lookups and deep copies. The model serializes to human-readable JSON for the
// autosave/bookmark store.

// SizeHint is the script-author's requested aspect for a panel.
type SizeHint string

const (
	SizeSquare SizeHint = "square"
	SizeWide   SizeHint = "wide"
	SizeTall   SizeHint = "tall"
)

// Valid reports whether the hint is one of the known aspects.
func (s SizeHint) Valid() bool {
	switch s {
	case SizeSquare, SizeWide, SizeTall:
		return true
	}
	return false
}

// PageTemplate selects the page arrangement mode. Only FreeCanvas uses
// free-form layout rectangles; the strip and four-panel templates place
// panels on a fixed grid derived from reading order.
type PageTemplate string

const (
	TemplateFreeCanvas   PageTemplate = "freeCanvas"
	TemplateWebtoonStrip PageTemplate = "webtoonStrip"
	TemplateFourKoma     PageTemplate = "fourKoma"
)

// CoverAspect describes the cover art orientation used to derive its height.
type CoverAspect string

const (
	CoverLandscape CoverAspect = "landscape"
	CoverPortrait  CoverAspect = "portrait"
)

// Rect is a free-canvas layout rectangle. Coordinates are in canvas units
// with the origin at the top-left corner of the page.
type Rect struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ZIndex   int     `json:"zIndex,omitempty"`
	Rotation float64 `json:"rotation,omitempty"` // degrees, clockwise
}

// Intersects reports whether the two rectangles overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && r.X+r.Width > o.X && r.Y < o.Y+o.Height && r.Y+r.Height > o.Y
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Dialogue is one lettering entry inside a panel.
type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Kind    string `json:"kind"` // speech, thought, narration, sfx
}

// PanelRecord holds one panel's script, generation status and optional
// free-canvas rectangle.
//
// Invariants:
//   - ImageRef is set only while Status == StatusCompleted.
//   - Layout is nil until the free-canvas layout has been initialized and
//     stays nil for grid-based page templates.
type PanelRecord struct {
	ID              int        `json:"id"`
	SizeHint        SizeHint   `json:"sizeHint"`
	Status          Status     `json:"status"`
	ImageRef        string     `json:"imageRef,omitempty"`
	Layout          *Rect      `json:"layout,omitempty"`
	Description     string     `json:"description"`
	VisualPrompt    string     `json:"visualPrompt"`
	Location        string     `json:"location,omitempty"`
	Time            string     `json:"time,omitempty"`
	CostumeOverride string     `json:"costumeOverride,omitempty"`
	Dialogues       []Dialogue `json:"dialogues,omitempty"`
	Characters      []string   `json:"charactersInPanel,omitempty"`
}

// Clone returns a deep copy of the panel.
func (p PanelRecord) Clone() PanelRecord {
	cp := p
	if p.Layout != nil {
		r := *p.Layout
		cp.Layout = &r
	}
	if p.Dialogues != nil {
		cp.Dialogues = append([]Dialogue(nil), p.Dialogues...)
	}
	if p.Characters != nil {
		cp.Characters = append([]string(nil), p.Characters...)
	}
	return cp
}

// Storyboard is the whole work-in-progress page: title, optional cover,
// ordered panels and style settings. Panel order is the authored reading
// order and the default packing order.
type Storyboard struct {
	Title         string        `json:"title"`
	Style         string        `json:"style,omitempty"`
	PageTemplate  PageTemplate  `json:"pageTemplate"`
	CoverPrompt   string        `json:"coverPrompt,omitempty"`
	CoverImageRef string        `json:"coverImageRef,omitempty"`
	CoverAspect   CoverAspect   `json:"coverAspect,omitempty"`
	CoverLayout   *Rect         `json:"coverLayout,omitempty"`
	Panels        []PanelRecord `json:"panels"`
}

// HasCover reports whether the storyboard carries cover art metadata.
func (s Storyboard) HasCover() bool { return s.CoverPrompt != "" }

// Clone returns a deep copy of the storyboard. The reducer clones before
// every mutation so suspended operations never alias live state.
func (s Storyboard) Clone() Storyboard {
	cp := s
	if s.CoverLayout != nil {
		r := *s.CoverLayout
		cp.CoverLayout = &r
	}
	if s.Panels != nil {
		cp.Panels = make([]PanelRecord, len(s.Panels))
		for i, p := range s.Panels {
			cp.Panels[i] = p.Clone()
		}
	}
	return cp
}

// PanelIndex returns the position of the panel with the given id, or -1.
func (s Storyboard) PanelIndex(id int) int {
	for i, p := range s.Panels {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Panel returns the panel with the given id, or nil when absent.
func (s Storyboard) Panel(id int) *PanelRecord {
	if i := s.PanelIndex(id); i >= 0 {
		return &s.Panels[i]
	}
	return nil
}

// NextPanelID returns max existing id + 1, or 1 for an empty board.
func (s Storyboard) NextPanelID() int {
	next := 1
	for _, p := range s.Panels {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}

// MaxZIndex returns the highest zIndex across all placed rectangles
// (cover included), or 0 when nothing is placed.
func (s Storyboard) MaxZIndex() int {
	maxZ := 0
	if s.CoverLayout != nil && s.CoverLayout.ZIndex > maxZ {
		maxZ = s.CoverLayout.ZIndex
	}
	for _, p := range s.Panels {
		if p.Layout != nil && p.Layout.ZIndex > maxZ {
			maxZ = p.Layout.ZIndex
		}
	}
	return maxZ
}
