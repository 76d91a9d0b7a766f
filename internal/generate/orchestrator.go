/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package generate drives a storyboard from story text to finished images.
// All state changes go through the board store, so delayed backend results
// merge against the current board and stale panel references drop out
// harmlessly.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nupa0w0-hash/MangaGenPro/internal/backend"
	"github.com/nupa0w0-hash/MangaGenPro/internal/board"
	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	applog "github.com/nupa0w0-hash/MangaGenPro/internal/log"
)

// ScriptBackend breaks story text into a panel script.
type ScriptBackend interface {
	GenerateScript(ctx context.Context, req backend.ScriptRequest) (domain.ScriptResult, error)
	RerollPanel(ctx context.Context, req backend.RerollRequest) (domain.ScriptPanel, error)
}

// ImageBackend renders one image per call and returns an opaque handle.
type ImageBackend interface {
	RenderImage(ctx context.Context, req backend.ImageRequest) (string, error)
}

// Recorder receives usage events. Satisfied by telemetry.Client; nil is fine.
type Recorder interface {
	Event(name string, props map[string]any)
}

// Options configures an Orchestrator.
type Options struct {
	ScriptRetry RetryPolicy
	ImageRetry  RetryPolicy
	Events      Recorder
}

// coverID marks the cover slot in the in-flight set; panel ids start at 1.
const coverID = 0

// Orchestrator sequences backend calls and panel status transitions. It
// enforces at most one in-flight generation per panel id.
type Orchestrator struct {
	store       *board.Store
	script      ScriptBackend
	image       ImageBackend
	scriptRetry RetryPolicy
	imageRetry  RetryPolicy
	events      Recorder
	log         *slog.Logger

	mu       sync.Mutex
	inflight map[int]struct{}
}

// New creates an orchestrator over a board store and backend pair.
func New(store *board.Store, script ScriptBackend, image ImageBackend, opts Options) *Orchestrator {
	if opts.ScriptRetry.MaxAttempts == 0 {
		opts.ScriptRetry = DefaultScriptRetry()
	}
	if opts.ImageRetry.MaxAttempts == 0 {
		opts.ImageRetry = DefaultImageRetry()
	}
	return &Orchestrator{
		store:       store,
		script:      script,
		image:       image,
		scriptRetry: opts.ScriptRetry,
		imageRetry:  opts.ImageRetry,
		events:      opts.Events,
		log:         applog.WithComponent("generate"),
		inflight:    make(map[int]struct{}),
	}
}

func (o *Orchestrator) acquire(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

// GenerateOptions carries the user's style and template choices into a
// fresh storyboard.
type GenerateOptions struct {
	Style       string
	Template    domain.PageTemplate
	CoverAspect domain.CoverAspect
}

// GenerateScript calls the script backend and replaces the storyboard
// wholesale with pending panels. On any failure the previous board stays
// untouched and a ScriptGenerationError is returned.
func (o *Orchestrator) GenerateScript(ctx context.Context, story string, roster []domain.Character, opts GenerateOptions) (domain.Storyboard, error) {
	log := applog.WithOperation(o.log, "generate_script")
	var res domain.ScriptResult
	err := withRetry(ctx, o.scriptRetry, func() error {
		var callErr error
		res, callErr = o.script.GenerateScript(ctx, backend.ScriptRequest{
			Story:      story,
			Style:      opts.Style,
			Characters: roster,
		})
		return callErr
	})
	if err != nil {
		log.Error("script generation failed", slog.Any("err", err))
		return domain.Storyboard{}, &ScriptGenerationError{Err: err}
	}
	sb := domain.NewStoryboard(res, opts.Style, opts.Template, opts.CoverAspect)
	out, err := o.store.Dispatch(board.ReplaceBoard{Board: sb})
	if err != nil {
		return domain.Storyboard{}, &ScriptGenerationError{Err: err}
	}
	log.Info("script generated", slog.String("title", out.Title), slog.Int("panels", len(out.Panels)))
	return out, nil
}

// RunReport summarizes one RunAll pass.
type RunReport struct {
	// CoverErr is set when cover generation failed; it never aborts the run.
	CoverErr  error
	Completed []int
	Failed    []int
	// Skipped lists panels that were already completed or busy elsewhere.
	Skipped []int
}

// RunAll initializes the layout once, generates the cover if it is still
// missing, then visits panels sequentially in authored order. A failed
// panel is marked failed and the run continues; the report carries the
// per-panel outcome.
func (o *Orchestrator) RunAll(ctx context.Context) (RunReport, error) {
	log := applog.WithOperation(o.log, "run_all")
	var report RunReport

	if _, err := o.store.Dispatch(board.InitializeLayout{}); err != nil {
		return report, fmt.Errorf("initialize layout: %w", err)
	}

	sb := o.store.Current()
	if sb.HasCover() && sb.CoverImageRef == "" {
		report.CoverErr = o.generateCover(ctx, log)
	}

	order := make([]int, 0, len(sb.Panels))
	for _, p := range sb.Panels {
		order = append(order, p.ID)
	}
	for _, id := range order {
		cur := o.store.Current()
		idx := cur.PanelIndex(id)
		if idx < 0 {
			// superseded mid-run, nothing to do for this id
			continue
		}
		if cur.Panels[idx].Status == domain.StatusCompleted {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if !o.acquire(id) {
			log.Debug("panel busy elsewhere, skipping", slog.Int("panel", id))
			report.Skipped = append(report.Skipped, id)
			continue
		}
		err := o.generatePanel(ctx, cur, cur.Panels[idx], false)
		o.release(id)
		if err != nil {
			log.Warn("panel failed", slog.Int("panel", id), slog.Any("err", err))
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Completed = append(report.Completed, id)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	log.Info("run finished",
		slog.Int("completed", len(report.Completed)),
		slog.Int("failed", len(report.Failed)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Bool("cover_failed", report.CoverErr != nil))
	if o.events != nil {
		o.events.Event("run_summary", map[string]any{
			"panels":       len(order),
			"completed":    len(report.Completed),
			"failed":       len(report.Failed),
			"cover_failed": report.CoverErr != nil,
		})
	}
	return report, nil
}

func (o *Orchestrator) generateCover(ctx context.Context, log *slog.Logger) error {
	if !o.acquire(coverID) {
		return ErrGenerationInFlight
	}
	defer o.release(coverID)

	sb := o.store.Current()
	var ref string
	err := withRetry(ctx, o.imageRetry, func() error {
		var callErr error
		ref, callErr = o.image.RenderImage(ctx, coverRequest(sb, false))
		return callErr
	})
	if err != nil {
		log.Warn("cover generation failed", slog.Any("err", err))
		return &ImageGenerationError{PanelID: coverID, Err: err}
	}
	if _, err := o.store.Dispatch(board.SetCoverImage{ImageRef: ref}); err != nil {
		return &ImageGenerationError{PanelID: coverID, Err: err}
	}
	return nil
}

// generatePanel runs the status dance for one panel: generating, then
// completed or failed. The image result dispatches against the board as it
// is when the call returns, so a panel removed mid-flight is dropped.
func (o *Orchestrator) generatePanel(ctx context.Context, sb domain.Storyboard, p domain.PanelRecord, fresh bool) error {
	if _, err := o.store.Dispatch(board.SetPanelStatus{ID: p.ID, Status: domain.StatusGenerating}); err != nil {
		return err
	}
	var ref string
	err := withRetry(ctx, o.imageRetry, func() error {
		var callErr error
		ref, callErr = o.image.RenderImage(ctx, panelRequest(sb, p, fresh))
		return callErr
	})
	if err != nil {
		if _, derr := o.store.Dispatch(board.SetPanelStatus{ID: p.ID, Status: domain.StatusFailed}); derr != nil {
			return derr
		}
		return &ImageGenerationError{PanelID: p.ID, Err: err}
	}
	if _, err := o.store.Dispatch(board.SetPanelImage{ID: p.ID, ImageRef: ref}); err != nil {
		return err
	}
	return nil
}

// RegenerateOne re-runs the image step for a single panel, from any status.
// At most one generation per panel id may be in flight; a second request
// for the same id fails with ErrGenerationInFlight.
func (o *Orchestrator) RegenerateOne(ctx context.Context, id int) error {
	sb := o.store.Current()
	idx := sb.PanelIndex(id)
	if idx < 0 {
		return fmt.Errorf("regenerate: %w (panel %d)", board.ErrStalePanel, id)
	}
	if !o.acquire(id) {
		return fmt.Errorf("panel %d: %w", id, ErrGenerationInFlight)
	}
	defer o.release(id)
	return o.generatePanel(ctx, sb, sb.Panels[idx], true)
}

// RerollScript regenerates only the script fields of one panel. The id is
// preserved; any existing image is discarded and the panel returns to
// pending. The in-flight guard covers rerolls too, so a reroll cannot race
// an image generation for the same id.
func (o *Orchestrator) RerollScript(ctx context.Context, id int, directive string) error {
	sb := o.store.Current()
	idx := sb.PanelIndex(id)
	if idx < 0 {
		return fmt.Errorf("reroll: %w (panel %d)", board.ErrStalePanel, id)
	}
	if !o.acquire(id) {
		return fmt.Errorf("panel %d: %w", id, ErrGenerationInFlight)
	}
	defer o.release(id)

	p := sb.Panels[idx]
	var next domain.ScriptPanel
	err := withRetry(ctx, o.scriptRetry, func() error {
		var callErr error
		next, callErr = o.script.RerollPanel(ctx, backend.RerollRequest{
			Style: sb.Style,
			Panel: domain.ScriptPanel{
				Description:     p.Description,
				VisualPrompt:    p.VisualPrompt,
				Location:        p.Location,
				Time:            p.Time,
				CostumeOverride: p.CostumeOverride,
				Dialogues:       p.Dialogues,
				Characters:      p.Characters,
				SizeHint:        p.SizeHint,
			},
			Directive: directive,
		})
		return callErr
	})
	if err != nil {
		return &ScriptGenerationError{Err: err}
	}
	if _, err := o.store.Dispatch(board.SetPanelScript{ID: id, Panel: next}); err != nil {
		return err
	}
	return nil
}

// panelRequest builds the image backend context for one panel.
func panelRequest(sb domain.Storyboard, p domain.PanelRecord, fresh bool) backend.ImageRequest {
	var b strings.Builder
	b.WriteString(p.VisualPrompt)
	if p.Location != "" {
		b.WriteString("\nLocation: ")
		b.WriteString(p.Location)
	}
	if p.Time != "" {
		b.WriteString("\nTime of day: ")
		b.WriteString(p.Time)
	}
	if p.CostumeOverride != "" {
		b.WriteString("\nCostume: ")
		b.WriteString(p.CostumeOverride)
	}
	if len(p.Characters) > 0 {
		b.WriteString("\nCharacters in panel: ")
		b.WriteString(strings.Join(p.Characters, ", "))
	}
	return backend.ImageRequest{
		Prompt: b.String(),
		Style:  sb.Style,
		Aspect: aspectFor(p.SizeHint),
		Fresh:  fresh,
	}
}

func coverRequest(sb domain.Storyboard, fresh bool) backend.ImageRequest {
	aspect := "16:9"
	if sb.CoverAspect == domain.CoverPortrait {
		aspect = "3:4"
	}
	return backend.ImageRequest{
		Prompt: sb.CoverPrompt + "\nCover art, title: " + sb.Title,
		Style:  sb.Style,
		Aspect: aspect,
		Fresh:  fresh,
	}
}

func aspectFor(hint domain.SizeHint) string {
	switch hint {
	case domain.SizeWide:
		return "16:9"
	case domain.SizeTall:
		return "3:4"
	default:
		return "1:1"
	}
}
