/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/backend"
	"github.com/nupa0w0-hash/MangaGenPro/internal/board"
	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/layout"
)

type scriptStub struct {
	calls    atomic.Int32
	genFn    func(backend.ScriptRequest) (domain.ScriptResult, error)
	rerollFn func(backend.RerollRequest) (domain.ScriptPanel, error)
}

func (s *scriptStub) GenerateScript(_ context.Context, req backend.ScriptRequest) (domain.ScriptResult, error) {
	s.calls.Add(1)
	return s.genFn(req)
}

func (s *scriptStub) RerollPanel(_ context.Context, req backend.RerollRequest) (domain.ScriptPanel, error) {
	s.calls.Add(1)
	return s.rerollFn(req)
}

type imageStub struct {
	mu    sync.Mutex
	calls []backend.ImageRequest
	fn    func(backend.ImageRequest) (string, error)
}

func (s *imageStub) RenderImage(_ context.Context, req backend.ImageRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	return "img", nil
}

func (s *imageStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func threePanelBoard() domain.Storyboard {
	return domain.Storyboard{
		Title:        "t",
		PageTemplate: domain.TemplateFreeCanvas,
		Panels: []domain.PanelRecord{
			{ID: 1, SizeHint: domain.SizeWide, Status: domain.StatusPending, VisualPrompt: "panel-1"},
			{ID: 2, SizeHint: domain.SizeSquare, Status: domain.StatusPending, VisualPrompt: "panel-2"},
			{ID: 3, SizeHint: domain.SizeTall, Status: domain.StatusPending, VisualPrompt: "panel-3"},
		},
	}
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func newTestOrch(sb domain.Storyboard, script ScriptBackend, image ImageBackend) (*Orchestrator, *board.Store) {
	st := board.NewStore(sb, layout.DefaultParams())
	o := New(st, script, image, Options{ScriptRetry: fastRetry(2), ImageRetry: fastRetry(3)})
	return o, st
}

func TestGenerateScriptReplacesBoard(t *testing.T) {
	script := &scriptStub{genFn: func(req backend.ScriptRequest) (domain.ScriptResult, error) {
		if req.Story != "once upon a time" || len(req.Characters) != 1 {
			t.Errorf("request: %+v", req)
		}
		return domain.ScriptResult{
			Title:       "new",
			CoverPrompt: "cover",
			Panels: []domain.ScriptPanel{
				{Description: "a", VisualPrompt: "va", SizeHint: domain.SizeWide},
				{Description: "b", VisualPrompt: "vb", SizeHint: domain.SizeTall},
			},
		}, nil
	}}
	o, st := newTestOrch(threePanelBoard(), script, &imageStub{})

	got, err := o.GenerateScript(context.Background(), "once upon a time",
		[]domain.Character{{Name: "Mira"}}, GenerateOptions{Style: "ink"})
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if got.Title != "new" || len(got.Panels) != 2 {
		t.Fatalf("board: %+v", got)
	}
	for i, p := range got.Panels {
		if p.ID != i+1 || p.Status != domain.StatusPending || p.Layout != nil {
			t.Errorf("panel %d: %+v", i, p)
		}
	}
	if st.Current().Title != "new" {
		t.Error("store not updated")
	}
}

func TestGenerateScriptFailsFastAfterTwoAttempts(t *testing.T) {
	script := &scriptStub{genFn: func(backend.ScriptRequest) (domain.ScriptResult, error) {
		return domain.ScriptResult{}, backend.NewTransient("script_generate", 503, fmt.Errorf("overloaded"))
	}}
	o, st := newTestOrch(threePanelBoard(), script, &imageStub{})

	_, err := o.GenerateScript(context.Background(), "s", nil, GenerateOptions{})
	var sge *ScriptGenerationError
	if !errors.As(err, &sge) {
		t.Fatalf("error = %v, want ScriptGenerationError", err)
	}
	if got := script.calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
	// nothing partial installed
	if got := st.Current(); got.Title != "t" || len(got.Panels) != 3 {
		t.Errorf("prior board disturbed: %+v", got)
	}
}

func TestGenerateScriptTerminalFailureDoesNotRetry(t *testing.T) {
	script := &scriptStub{genFn: func(backend.ScriptRequest) (domain.ScriptResult, error) {
		return domain.ScriptResult{}, backend.NewTerminal("script_decode", 0, fmt.Errorf("schema violation"))
	}}
	o, _ := newTestOrch(threePanelBoard(), script, &imageStub{})

	if _, err := o.GenerateScript(context.Background(), "s", nil, GenerateOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if got := script.calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}
}

func TestRunAllPartialFailureIsolation(t *testing.T) {
	image := &imageStub{fn: func(req backend.ImageRequest) (string, error) {
		if strings.Contains(req.Prompt, "panel-2") {
			return "", backend.NewTerminal("image_render", 400, fmt.Errorf("invalid argument"))
		}
		return "img-" + req.Aspect, nil
	}}
	o, st := newTestOrch(threePanelBoard(), nil, image)

	report, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	sb := st.Current()
	want := map[int]domain.Status{1: domain.StatusCompleted, 2: domain.StatusFailed, 3: domain.StatusCompleted}
	for _, p := range sb.Panels {
		if p.Status != want[p.ID] {
			t.Errorf("panel %d: status = %s, want %s", p.ID, p.Status, want[p.ID])
		}
		if p.Status == domain.StatusCompleted && p.ImageRef == "" {
			t.Errorf("panel %d completed without image", p.ID)
		}
		if p.Status == domain.StatusFailed && p.ImageRef != "" {
			t.Errorf("panel %d failed but kept image %q", p.ID, p.ImageRef)
		}
	}
	if len(report.Completed) != 2 || len(report.Failed) != 1 || report.Failed[0] != 2 {
		t.Errorf("report: %+v", report)
	}
	// failed panel stays individually retriable
	image.fn = nil
	if err := o.RegenerateOne(context.Background(), 2); err != nil {
		t.Fatalf("retry after run: %v", err)
	}
	if got := st.Current().Panels[1].Status; got != domain.StatusCompleted {
		t.Errorf("retried panel status = %s", got)
	}
}

func TestRunAllRetryCeiling(t *testing.T) {
	transient := func() error {
		return backend.NewTransient("image_render", 503, fmt.Errorf("overloaded"))
	}
	cases := []struct {
		name     string
		failures int
		want     domain.Status
	}{
		{"succeeds on the last attempt", 2, domain.StatusCompleted},
		{"exhausts all attempts", 3, domain.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			image := &imageStub{fn: func(backend.ImageRequest) (string, error) {
				if int(calls.Add(1)) <= tc.failures {
					return "", transient()
				}
				return "img", nil
			}}
			sb := domain.Storyboard{Panels: []domain.PanelRecord{
				{ID: 1, SizeHint: domain.SizeSquare, Status: domain.StatusPending, VisualPrompt: "p"},
			}}
			o, st := newTestOrch(sb, nil, image)
			if _, err := o.RunAll(context.Background()); err != nil {
				t.Fatalf("RunAll: %v", err)
			}
			if got := st.Current().Panels[0].Status; got != tc.want {
				t.Errorf("status = %s, want %s (calls %d)", got, tc.want, calls.Load())
			}
		})
	}
}

func TestRunAllSkipsCompletedPanels(t *testing.T) {
	sb := threePanelBoard()
	sb.Panels[0].Status = domain.StatusCompleted
	sb.Panels[0].ImageRef = "done"
	image := &imageStub{}
	o, st := newTestOrch(sb, nil, image)

	report, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if image.callCount() != 2 {
		t.Errorf("image calls = %d, want 2", image.callCount())
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != 1 {
		t.Errorf("skipped: %v", report.Skipped)
	}
	if got := st.Current().Panels[0].ImageRef; got != "done" {
		t.Errorf("completed panel disturbed: %q", got)
	}
}

func TestRunAllCoverReportedSeparately(t *testing.T) {
	sb := threePanelBoard()
	sb.CoverPrompt = "a dramatic cover"
	sb.CoverAspect = domain.CoverPortrait
	image := &imageStub{fn: func(req backend.ImageRequest) (string, error) {
		if strings.Contains(req.Prompt, "dramatic cover") {
			return "", backend.NewTerminal("image_render", 400, fmt.Errorf("blocked"))
		}
		return "img", nil
	}}
	o, st := newTestOrch(sb, nil, image)

	report, err := o.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	var ige *ImageGenerationError
	if !errors.As(report.CoverErr, &ige) || ige.PanelID != 0 {
		t.Fatalf("cover error: %v", report.CoverErr)
	}
	// cover failure never aborts the panel loop
	if len(report.Completed) != 3 {
		t.Errorf("completed: %v", report.Completed)
	}
	if st.Current().CoverImageRef != "" {
		t.Error("cover image set despite failure")
	}
	// cover request must carry the portrait aspect
	image.mu.Lock()
	first := image.calls[0]
	image.mu.Unlock()
	if first.Aspect != "3:4" {
		t.Errorf("cover aspect = %q", first.Aspect)
	}
}

func TestRunAllVisitsPanelsInAuthoredOrder(t *testing.T) {
	image := &imageStub{}
	o, _ := newTestOrch(threePanelBoard(), nil, image)
	if _, err := o.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	var got []string
	for _, c := range image.calls {
		got = append(got, c.Prompt[:7])
	}
	want := []string{"panel-1", "panel-2", "panel-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRegenerateOneRejectsDoubleSubmission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	image := &imageStub{fn: func(backend.ImageRequest) (string, error) {
		started <- struct{}{}
		<-release
		return "img", nil
	}}
	o, st := newTestOrch(threePanelBoard(), nil, image)

	done := make(chan error, 1)
	go func() { done <- o.RegenerateOne(context.Background(), 2) }()
	<-started

	if err := o.RegenerateOne(context.Background(), 2); !errors.Is(err, ErrGenerationInFlight) {
		t.Errorf("second submission error = %v, want ErrGenerationInFlight", err)
	}
	// a different panel id is not blocked by panel 2's flight
	go func() {
		<-started
		close(release)
	}()
	if err := o.RegenerateOne(context.Background(), 3); err != nil {
		t.Errorf("different panel blocked: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first regeneration: %v", err)
	}
	if got := st.Current().Panels[1].Status; got != domain.StatusCompleted {
		t.Errorf("panel 2 status = %s", got)
	}
}

func TestRegenerateOneUnknownPanel(t *testing.T) {
	o, _ := newTestOrch(threePanelBoard(), nil, &imageStub{})
	if err := o.RegenerateOne(context.Background(), 99); !errors.Is(err, board.ErrStalePanel) {
		t.Errorf("error = %v, want ErrStalePanel", err)
	}
}

func TestRegenerateOneCompletedPanelGetsFreshImage(t *testing.T) {
	sb := threePanelBoard()
	sb.Panels[0].Status = domain.StatusCompleted
	sb.Panels[0].ImageRef = "old"
	image := &imageStub{fn: func(req backend.ImageRequest) (string, error) {
		if !req.Fresh {
			t.Error("regeneration must bypass the response cache")
		}
		return "new", nil
	}}
	o, st := newTestOrch(sb, nil, image)

	if err := o.RegenerateOne(context.Background(), 1); err != nil {
		t.Fatalf("RegenerateOne: %v", err)
	}
	if got := st.Current().Panels[0].ImageRef; got != "new" {
		t.Errorf("imageRef = %q", got)
	}
}

func TestRegenerateOneResultDroppedWhenBoardReplaced(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	image := &imageStub{fn: func(backend.ImageRequest) (string, error) {
		close(started)
		<-release
		return "late", nil
	}}
	o, st := newTestOrch(threePanelBoard(), nil, image)

	done := make(chan error, 1)
	go func() { done <- o.RegenerateOne(context.Background(), 3) }()
	<-started

	// a fresh script supersedes the board; panel 3 no longer exists
	fresh := domain.Storyboard{Title: "fresh", Panels: []domain.PanelRecord{
		{ID: 1, Status: domain.StatusPending, VisualPrompt: "v"},
	}}
	if _, err := st.Dispatch(board.ReplaceBoard{Board: fresh}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("orphaned regeneration surfaced an error: %v", err)
	}
	got := st.Current()
	if len(got.Panels) != 1 || got.Panels[0].ImageRef != "" {
		t.Errorf("stale result resurrected: %+v", got.Panels)
	}
}

func TestRerollScript(t *testing.T) {
	script := &scriptStub{rerollFn: func(req backend.RerollRequest) (domain.ScriptPanel, error) {
		if req.Panel.VisualPrompt != "panel-2" || req.Directive != "funnier" {
			t.Errorf("request: %+v", req)
		}
		return domain.ScriptPanel{
			Description:  "funnier beat",
			VisualPrompt: "funnier art",
			SizeHint:     domain.SizeWide,
		}, nil
	}}
	sb := threePanelBoard()
	sb.Panels[1].Status = domain.StatusCompleted
	sb.Panels[1].ImageRef = "old"
	o, st := newTestOrch(sb, script, &imageStub{})

	if err := o.RerollScript(context.Background(), 2, "funnier"); err != nil {
		t.Fatalf("RerollScript: %v", err)
	}
	p := st.Current().Panels[1]
	if p.ID != 2 {
		t.Errorf("id changed: %d", p.ID)
	}
	if p.Status != domain.StatusPending || p.ImageRef != "" {
		t.Errorf("reroll must reset the panel: %+v", p)
	}
	if p.Description != "funnier beat" || p.SizeHint != domain.SizeWide {
		t.Errorf("script fields: %+v", p)
	}
}

func TestRerollScriptBackendFailure(t *testing.T) {
	script := &scriptStub{rerollFn: func(backend.RerollRequest) (domain.ScriptPanel, error) {
		return domain.ScriptPanel{}, backend.NewTerminal("script_reroll", 400, fmt.Errorf("nope"))
	}}
	sb := threePanelBoard()
	sb.Panels[0].Status = domain.StatusCompleted
	sb.Panels[0].ImageRef = "keep"
	o, st := newTestOrch(sb, script, &imageStub{})

	var sge *ScriptGenerationError
	if err := o.RerollScript(context.Background(), 1, ""); !errors.As(err, &sge) {
		t.Fatalf("error = %v, want ScriptGenerationError", err)
	}
	if got := st.Current().Panels[0]; got.ImageRef != "keep" || got.Status != domain.StatusCompleted {
		t.Errorf("failed reroll disturbed the panel: %+v", got)
	}
}
