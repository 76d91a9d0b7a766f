/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
)

// snapshot is one reversible storyboard state, captured before an action.
type snapshot struct {
	board  domain.Storyboard
	action string
	ts     time.Time
}

// historyConfig controls depth caps and coalescing behavior.
type historyConfig struct {
	// MaxDepth limits the number of undo entries kept (0 uses the default).
	MaxDepth int
	// MinInterval coalesces snapshots of the same action kind captured
	// within the interval: a drag emits a burst of update_rect actions
	// and should undo as one step.
	MinInterval time.Duration
}

// history is an undo/redo stack over storyboard values. Callers hold the
// Store lock; history itself is not synchronized.
type history struct {
	cfg       historyConfig
	undoStack []snapshot
	redoStack []snapshot
}

func newHistory(cfg historyConfig) *history {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 100
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &history{cfg: cfg}
}

// push records the pre-action state. Within MinInterval, consecutive
// snapshots of the same action kind coalesce into the earliest one. Any new
// change invalidates the redo stack.
func (h *history) push(s snapshot) {
	if n := len(h.undoStack); n > 0 {
		last := h.undoStack[n-1]
		if last.action == s.action && s.ts.Sub(last.ts) < h.cfg.MinInterval {
			// keep the older board, refresh the timestamp
			h.undoStack[n-1].ts = s.ts
			h.redoStack = nil
			return
		}
	}
	h.undoStack = append(h.undoStack, s)
	h.redoStack = nil
	if len(h.undoStack) > h.cfg.MaxDepth {
		h.undoStack = append([]snapshot{}, h.undoStack[len(h.undoStack)-h.cfg.MaxDepth:]...)
	}
}

// undo pops the latest snapshot, pushing the current state onto redo.
func (h *history) undo(current domain.Storyboard) (snapshot, bool) {
	n := len(h.undoStack)
	if n == 0 {
		return snapshot{}, false
	}
	s := h.undoStack[n-1]
	h.undoStack = h.undoStack[:n-1]
	h.redoStack = append(h.redoStack, snapshot{board: current, action: s.action, ts: time.Now()})
	return s, true
}

// redo pops from the redo stack, pushing the current state back onto undo.
func (h *history) redo(current domain.Storyboard) (snapshot, bool) {
	n := len(h.redoStack)
	if n == 0 {
		return snapshot{}, false
	}
	s := h.redoStack[n-1]
	h.redoStack = h.redoStack[:n-1]
	h.undoStack = append(h.undoStack, snapshot{board: current, action: s.action, ts: time.Now()})
	return s, true
}
