/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"errors"
	"fmt"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

// ErrStalePanel marks an action that resolved against a panel id no longer
// present in the current storyboard, typically a backend callback that
// outlived a whole-script regeneration. The Store drops these silently.
var ErrStalePanel = errors.New("panel no longer exists in current storyboard")

// Reduce applies one action to the storyboard and returns the next state.
// The input is never modified. Status changes are checked against the panel
// state machine; references to missing panels yield ErrStalePanel.
func Reduce(sb domain.Storyboard, a Action, params layout.Params) (domain.Storyboard, error) {
	switch act := a.(type) {
	case ReplaceBoard:
		return act.Board.Clone(), nil

	case SetPanelStatus:
		i := sb.PanelIndex(act.ID)
		if i < 0 {
			return sb, fmt.Errorf("set status for panel %d: %w", act.ID, ErrStalePanel)
		}
		if err := domain.CheckTransition(sb.Panels[i].Status, act.Status); err != nil {
			return sb, err
		}
		out := sb.Clone()
		out.Panels[i].Status = act.Status
		if act.Status != domain.StatusCompleted {
			// imageRef set implies completed; leaving completed drops the handle
			out.Panels[i].ImageRef = ""
		}
		return out, nil

	case SetPanelImage:
		i := sb.PanelIndex(act.ID)
		if i < 0 {
			return sb, fmt.Errorf("set image for panel %d: %w", act.ID, ErrStalePanel)
		}
		if err := domain.CheckTransition(sb.Panels[i].Status, domain.StatusCompleted); err != nil {
			return sb, err
		}
		out := sb.Clone()
		out.Panels[i].Status = domain.StatusCompleted
		out.Panels[i].ImageRef = act.ImageRef
		return out, nil

	case SetPanelScript:
		i := sb.PanelIndex(act.ID)
		if i < 0 {
			return sb, fmt.Errorf("set script for panel %d: %w", act.ID, ErrStalePanel)
		}
		out := sb.Clone()
		p := &out.Panels[i]
		p.Description = act.Panel.Description
		p.VisualPrompt = act.Panel.VisualPrompt
		p.Location = act.Panel.Location
		p.Time = act.Panel.Time
		p.CostumeOverride = act.Panel.CostumeOverride
		p.Dialogues = append([]domain.Dialogue(nil), act.Panel.Dialogues...)
		p.Characters = append([]string(nil), act.Panel.Characters...)
		if act.Panel.SizeHint.Valid() {
			p.SizeHint = act.Panel.SizeHint
		}
		p.ImageRef = ""
		p.Status = domain.StatusPending
		return out, nil

	case SetCoverImage:
		out := sb.Clone()
		out.CoverImageRef = act.ImageRef
		return out, nil

	case AddPanel:
		out := sb.Clone()
		hint := act.SizeHint
		if !hint.Valid() {
			hint = domain.SizeSquare
		}
		out.Panels = append(out.Panels, domain.PanelRecord{
			ID:       out.NextPanelID(),
			SizeHint: hint,
			Status:   domain.StatusPending,
		})
		return out, nil

	case RemovePanel:
		i := sb.PanelIndex(act.ID)
		if i < 0 {
			return sb, fmt.Errorf("remove panel %d: %w", act.ID, ErrStalePanel)
		}
		out := sb.Clone()
		out.Panels = append(out.Panels[:i], out.Panels[i+1:]...)
		return out, nil

	case InitializeLayout:
		return layout.For(sb, params).Initialize(sb), nil

	case ResetLayout:
		return layout.For(sb, params).Reset(sb), nil

	case UpdateRect:
		out, err := layout.UpdateRect(sb, act.ID, act.Delta)
		if err != nil && sb.PanelIndex(act.ID) < 0 {
			return sb, fmt.Errorf("update rect for panel %d: %w", act.ID, ErrStalePanel)
		}
		return out, err

	case UpdateCoverRect:
		return layout.UpdateCoverRect(sb, act.Delta)

	case BringToFront:
		out, err := layout.BringToFront(sb, act.ID)
		if err != nil && sb.PanelIndex(act.ID) < 0 {
			return sb, fmt.Errorf("bring panel %d to front: %w", act.ID, ErrStalePanel)
		}
		return out, err

	case SetPageTemplate:
		out := sb.Clone()
		out.PageTemplate = act.Template
		return layout.For(out, params).Initialize(out), nil

	default:
		return sb, fmt.Errorf("unknown action %T", a)
	}
}
