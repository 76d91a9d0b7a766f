/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"testing"

	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
)

func TestUpdateRectMergesPartialDelta(t *testing.T) {
	e := freeCanvas()
	sb := e.Initialize(board(domain.SizeSquare))

	out, err := UpdateRect(sb, 1, RectDelta{X: Float64(100), Rotation: Float64(15)})
	if err != nil {
		t.Fatalf("UpdateRect: %v", err)
	}
	r := out.Panels[0].Layout
	if !approx(r.X, 100) || !approx(r.Rotation, 15) {
		t.Errorf("delta not applied: %+v", *r)
	}
	// untouched fields survive the merge
	if !approx(r.Y, 24) || !approx(r.Width, 300) || !approx(r.Height, 300) {
		t.Errorf("untouched fields changed: %+v", *r)
	}
	// the input board is unchanged (copy-on-write)
	if !approx(sb.Panels[0].Layout.X, 24) {
		t.Errorf("input board mutated: %+v", *sb.Panels[0].Layout)
	}
}

func TestUpdateRectErrors(t *testing.T) {
	sb := board(domain.SizeSquare) // unplaced
	if _, err := UpdateRect(sb, 1, RectDelta{X: Float64(0)}); err == nil {
		t.Error("expected error for unplaced panel")
	}
	if _, err := UpdateRect(sb, 42, RectDelta{X: Float64(0)}); err == nil {
		t.Error("expected error for unknown panel id")
	}
}

func TestUpdateCoverRect(t *testing.T) {
	e := freeCanvas()
	sb := board()
	sb.CoverPrompt = "cover"
	sb = e.Initialize(sb)

	out, err := UpdateCoverRect(sb, RectDelta{Y: Float64(10)})
	if err != nil {
		t.Fatalf("UpdateCoverRect: %v", err)
	}
	if !approx(out.CoverLayout.Y, 10) {
		t.Errorf("cover y = %v", out.CoverLayout.Y)
	}
	if _, err := UpdateCoverRect(domain.Storyboard{}, RectDelta{}); err == nil {
		t.Error("expected error without a cover rectangle")
	}
}

func TestBringToFront(t *testing.T) {
	e := freeCanvas()
	sb := e.Initialize(board(domain.SizeSquare, domain.SizeSquare, domain.SizeSquare))

	out, err := BringToFront(sb, 2)
	if err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	if z := out.Panels[1].Layout.ZIndex; z != 1 {
		t.Errorf("first raise zIndex = %d, want 1", z)
	}
	out, err = BringToFront(out, 1)
	if err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	if z := out.Panels[0].Layout.ZIndex; z != 2 {
		t.Errorf("second raise zIndex = %d, want 2", z)
	}
	// siblings keep their z-indices
	if z := out.Panels[1].Layout.ZIndex; z != 1 {
		t.Errorf("sibling zIndex changed to %d", z)
	}
	if _, err := BringToFront(out, 99); err == nil {
		t.Error("expected error for unknown panel id")
	}
}
