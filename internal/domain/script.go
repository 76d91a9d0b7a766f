/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Script payload types. These mirror the wire shape returned by the script
// backend; the payload is schema-validated before it is accepted (see
// internal/backend), so by the time a ScriptResult reaches the orchestrator
// its required fields are known to be present.

// ScriptPanel is one panel of a generated script.
type ScriptPanel struct {
	Description     string     `json:"description"`
	VisualPrompt    string     `json:"visualPrompt"`
	Location        string     `json:"location,omitempty"`
	Time            string     `json:"time,omitempty"`
	CostumeOverride string     `json:"costumeOverride,omitempty"`
	Dialogues       []Dialogue `json:"dialogues"`
	Characters      []string   `json:"charactersInPanel"`
	SizeHint        SizeHint   `json:"sizeHint"`
}

// ScriptResult is the full script backend response.
type ScriptResult struct {
	Title       string        `json:"title"`
	CoverPrompt string        `json:"coverPrompt"`
	Panels      []ScriptPanel `json:"panels"`
}

// Character is a roster entry passed to script generation so the backend
// keeps names and appearances consistent across panels.
type Character struct {
	Name       string   `json:"name" yaml:"name"`
	VisualCues []string `json:"visualCues,omitempty" yaml:"visual_cues"`
	Voice      string   `json:"voice,omitempty" yaml:"voice"`
}

// NewStoryboard builds a fresh storyboard from a validated script result.
// Every panel starts pending with no layout rectangle, which forces layout
// re-initialization, and ids follow authored order starting at 1.
func NewStoryboard(res ScriptResult, style string, template PageTemplate, coverAspect CoverAspect) Storyboard {
	if template == "" {
		template = TemplateFreeCanvas
	}
	if coverAspect == "" {
		coverAspect = CoverLandscape
	}
	sb := Storyboard{
		Title:        res.Title,
		Style:        style,
		PageTemplate: template,
		CoverPrompt:  res.CoverPrompt,
		CoverAspect:  coverAspect,
		Panels:       make([]PanelRecord, 0, len(res.Panels)),
	}
	for i, sp := range res.Panels {
		hint := sp.SizeHint
		if !hint.Valid() {
			hint = SizeSquare
		}
		sb.Panels = append(sb.Panels, PanelRecord{
			ID:              i + 1,
			SizeHint:        hint,
			Status:          StatusPending,
			Description:     sp.Description,
			VisualPrompt:    sp.VisualPrompt,
			Location:        sp.Location,
			Time:            sp.Time,
			CostumeOverride: sp.CostumeOverride,
			Dialogues:       append([]Dialogue(nil), sp.Dialogues...),
			Characters:      append([]string(nil), sp.Characters...),
		})
	}
	return sb
}
