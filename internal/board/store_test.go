/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package board

import (
	"sync"
	"testing"
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

func newTestStore() *Store { return NewStore(testBoard(), layout.DefaultParams()) }

func TestDispatchAppliesAgainstCurrentState(t *testing.T) {
	s := newTestStore()

	// A "suspended" operation captured the board before a manual edit...
	if _, err := s.Dispatch(SetPanelStatus{ID: 1, Status: domain.StatusGenerating}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	// ...the user edits another panel meanwhile...
	if _, err := s.Dispatch(AddPanel{SizeHint: domain.SizeTall}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	// ...and the delayed result merges against the *current* board.
	got, err := s.Dispatch(SetPanelImage{ID: 1, ImageRef: "img"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(got.Panels) != 3 {
		t.Errorf("manual edit clobbered by delayed result: %d panels", len(got.Panels))
	}
	if got.Panels[0].Status != domain.StatusCompleted {
		t.Errorf("delayed result not applied: %s", got.Panels[0].Status)
	}
}

func TestDispatchDropsStaleActionsSilently(t *testing.T) {
	s := newTestStore()
	before := s.Current()
	after, err := s.Dispatch(SetPanelImage{ID: 99, ImageRef: "orphan"})
	if err != nil {
		t.Fatalf("stale action surfaced an error: %v", err)
	}
	if len(after.Panels) != len(before.Panels) {
		t.Error("stale action changed the board")
	}
}

func TestDispatchSurfacesIllegalTransitions(t *testing.T) {
	s := newTestStore()
	if _, err := s.Dispatch(SetPanelImage{ID: 1, ImageRef: "x"}); err == nil {
		t.Error("pending -> completed should fail")
	}
}

func TestDispatchSerializesConcurrentCallers(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Dispatch(AddPanel{})
		}()
	}
	wg.Wait()
	got := s.Current()
	if len(got.Panels) != 22 {
		t.Fatalf("panels = %d, want 22", len(got.Panels))
	}
	seen := map[int]bool{}
	for _, p := range got.Panels {
		if seen[p.ID] {
			t.Fatalf("duplicate panel id %d", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestCurrentReturnsACopy(t *testing.T) {
	s := newTestStore()
	got := s.Current()
	got.Panels[0].Status = domain.StatusFailed
	if s.Current().Panels[0].Status != domain.StatusPending {
		t.Error("Current() leaked internal state")
	}
}

func TestUndoRedo(t *testing.T) {
	s := newTestStore()
	if _, ok := s.Undo(); ok {
		t.Fatal("undo on empty history")
	}
	if _, err := s.Dispatch(AddPanel{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	undone, ok := s.Undo()
	if !ok || len(undone.Panels) != 2 {
		t.Fatalf("undo: ok=%v panels=%d", ok, len(undone.Panels))
	}
	redone, ok := s.Redo()
	if !ok || len(redone.Panels) != 3 {
		t.Fatalf("redo: ok=%v panels=%d", ok, len(redone.Panels))
	}
}

func TestHistoryCoalescesDragBursts(t *testing.T) {
	h := newHistory(historyConfig{MinInterval: time.Second})
	base := testBoard()
	now := time.Now()
	h.push(snapshot{board: base, action: "update_rect", ts: now})
	h.push(snapshot{board: base, action: "update_rect", ts: now.Add(10 * time.Millisecond)})
	h.push(snapshot{board: base, action: "update_rect", ts: now.Add(20 * time.Millisecond)})
	if len(h.undoStack) != 1 {
		t.Errorf("drag burst produced %d undo entries, want 1", len(h.undoStack))
	}
	// a different action kind breaks the run
	h.push(snapshot{board: base, action: "add_panel", ts: now.Add(30 * time.Millisecond)})
	if len(h.undoStack) != 2 {
		t.Errorf("undo entries = %d, want 2", len(h.undoStack))
	}
}

func TestHistoryDepthCap(t *testing.T) {
	h := newHistory(historyConfig{MaxDepth: 3, MinInterval: time.Nanosecond})
	base := testBoard()
	for i := 0; i < 10; i++ {
		h.push(snapshot{board: base, action: "add_panel", ts: time.Now().Add(time.Duration(i) * time.Second)})
	}
	if len(h.undoStack) != 3 {
		t.Errorf("undo depth = %d, want 3", len(h.undoStack))
	}
}
