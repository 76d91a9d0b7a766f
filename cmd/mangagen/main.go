/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nupa0w0-hash/MangaGenPro/internal/backend"
	"github.com/nupa0w0-hash/MangaGenPro/internal/board"
	"github.com/nupa0w0-hash/MangaGenPro/internal/config"
	"github.com/nupa0w0-hash/MangaGenPro/internal/crash"
	"github.com/nupa0w0-hash/MangaGenPro/internal/domain"
	"github.com/nupa0w0-hash/MangaGenPro/internal/export"
	"github.com/nupa0w0-hash/MangaGenPro/internal/generate"
	applog "github.com/nupa0w0-hash/MangaGenPro/internal/log"
	"github.com/nupa0w0-hash/MangaGenPro/internal/storage"
	"github.com/nupa0w0-hash/MangaGenPro/internal/telemetry"
	"github.com/nupa0w0-hash/MangaGenPro/internal/version"
)

func usage() {
	fmt.Println("MangaGenPro — story to comic page generator")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mangagen version|-v|--version       Show version")
	fmt.Println("  mangagen generate <story.txt>       Generate a script and run all panels")
	fmt.Println("  mangagen run                        Resume the autosaved storyboard")
	fmt.Println("  mangagen retry <panelID>            Regenerate one panel's image")
	fmt.Println("  mangagen reroll <panelID> [hint]    Regenerate one panel's script")
	fmt.Println("  mangagen layout reset|show          Reset or print the packed layout")
	fmt.Println("  mangagen export png|pdf <out>       Export the current page")
	fmt.Println("  mangagen save <name>                Bookmark the current storyboard")
	fmt.Println("  mangagen load <name>                Load a bookmarked storyboard")
	fmt.Println("  mangagen bookmarks                  List bookmarks")
}

// app wires the stores and the orchestrator for one CLI invocation.
type app struct {
	cfg       config.AppConfig
	dataDir   string
	snapshots *storage.Store
	board     *board.Store
	orch      *generate.Orchestrator
	log       *slog.Logger
}

func newApp(l *slog.Logger) (*app, error) {
	cfg, apiKey, err := config.Load()
	if err != nil {
		return nil, err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	snapshots, err := storage.Open(dataDir)
	if err != nil {
		return nil, err
	}

	sb, _, err := snapshots.LoadAutosave(context.Background())
	if err != nil {
		_ = snapshots.Close()
		return nil, err
	}
	bs := board.NewStore(sb, cfg.LayoutParams())

	script := backend.NewClient(backend.Options{
		BaseURL:     cfg.Script.BaseURL,
		Token:       apiKey,
		ScriptModel: cfg.Script.Model,
		Timeout:     config.ParseTimeout(cfg.Script.TimeoutMs, 60*time.Second),
		Classifier:  cfg.Classifier(),
	})
	image := backend.NewClient(backend.Options{
		BaseURL:    cfg.Image.BaseURL,
		Token:      apiKey,
		ImageModel: cfg.Image.Model,
		Timeout:    config.ParseTimeout(cfg.Image.TimeoutMs, 120*time.Second),
		Classifier: cfg.Classifier(),
		RatePerSec: cfg.Image.RatePerSec,
		Burst:      cfg.Image.Burst,
		CacheTTL:   time.Duration(cfg.Image.CacheTTLMinutes) * time.Minute,
	})

	var events generate.Recorder
	if cfg.General.TelemetryOptIn {
		telemetry.InitDefault()
		events = telemetryRecorder{}
	}
	orch := generate.New(bs, script, image, generate.Options{
		ScriptRetry: cfg.ScriptRetry(),
		ImageRetry:  cfg.ImageRetry(),
		Events:      events,
	})
	return &app{cfg: cfg, dataDir: dataDir, snapshots: snapshots, board: bs, orch: orch, log: l}, nil
}

type telemetryRecorder struct{}

func (telemetryRecorder) Event(name string, props map[string]any) { telemetry.Event(name, props) }

func (a *app) autosave(ctx context.Context) {
	if err := a.snapshots.SaveAutosave(ctx, a.board.Current()); err != nil {
		a.log.Error("autosave failed", slog.Any("err", err))
	}
}

func (a *app) printSummary(report generate.RunReport) {
	sb := a.board.Current()
	fmt.Printf("Storyboard: %s (%d panels)\n", sb.Title, len(sb.Panels))
	if report.CoverErr != nil {
		fmt.Printf("Cover: FAILED (%v)\n", report.CoverErr)
	} else if sb.CoverImageRef != "" {
		fmt.Println("Cover: completed")
	}
	fmt.Printf("Completed: %d  Failed: %d  Skipped: %d\n",
		len(report.Completed), len(report.Failed), len(report.Skipped))
	for _, id := range report.Failed {
		fmt.Printf("  panel %d failed — retry with: mangagen retry %d\n", id, id)
	}
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	args := os.Args
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	if args[1] == "version" || args[1] == "--version" || args[1] == "-v" {
		fmt.Println("MangaGenPro", version.String())
		return
	}

	a, err := newApp(l)
	if err != nil {
		l.Error("startup failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer a.snapshots.Close()
	defer func() { crash.Recover(a.dataDir, a.snapshots, a.board) }()

	ctx := context.Background()
	switch args[1] {
	case "generate":
		if len(args) < 3 {
			fmt.Println("generate requires <story.txt>")
			usage()
			os.Exit(2)
		}
		story, err := os.ReadFile(args[2])
		if err != nil {
			fail(l, "read story", err)
		}
		roster, err := config.LoadRoster(a.cfg.General.CharactersFile)
		if err != nil {
			fail(l, "load roster", err)
		}
		_, err = a.orch.GenerateScript(ctx, string(story), roster, generate.GenerateOptions{
			Style:       a.cfg.General.Style,
			Template:    domain.PageTemplate(a.cfg.General.PageTemplate),
			CoverAspect: domain.CoverAspect(a.cfg.General.CoverAspect),
		})
		if err != nil {
			fail(l, "generate script", err)
		}
		report, err := a.orch.RunAll(ctx)
		a.autosave(ctx)
		if err != nil {
			fail(l, "run", err)
		}
		a.printSummary(report)

	case "run":
		report, err := a.orch.RunAll(ctx)
		a.autosave(ctx)
		if err != nil {
			fail(l, "run", err)
		}
		a.printSummary(report)

	case "retry":
		id := panelIDArg(args)
		if err := a.orch.RegenerateOne(ctx, id); err != nil {
			fail(l, "retry", err)
		}
		a.autosave(ctx)
		fmt.Printf("panel %d regenerated\n", id)

	case "reroll":
		id := panelIDArg(args)
		directive := strings.Join(args[3:], " ")
		if err := a.orch.RerollScript(ctx, id, directive); err != nil {
			fail(l, "reroll", err)
		}
		a.autosave(ctx)
		fmt.Printf("panel %d script rerolled; image cleared, run 'mangagen run' to render\n", id)

	case "layout":
		if len(args) < 3 {
			fmt.Println("layout requires reset or show")
			os.Exit(2)
		}
		switch args[2] {
		case "reset":
			if _, err := a.board.Dispatch(board.ResetLayout{}); err != nil {
				fail(l, "layout reset", err)
			}
			a.autosave(ctx)
			fmt.Println("layout reset to the packed arrangement")
		case "show":
			sb := a.board.Current()
			if sb.CoverLayout != nil {
				r := sb.CoverLayout
				fmt.Printf("cover     (%.0f, %.0f) %gx%g\n", r.X, r.Y, r.Width, r.Height)
			}
			for _, p := range sb.Panels {
				if p.Layout == nil {
					fmt.Printf("panel %-3d unplaced [%s, %s]\n", p.ID, p.SizeHint, p.Status)
					continue
				}
				r := p.Layout
				fmt.Printf("panel %-3d (%.0f, %.0f) %gx%g z=%d [%s, %s]\n",
					p.ID, r.X, r.Y, r.Width, r.Height, r.ZIndex, p.SizeHint, p.Status)
			}
			fmt.Printf("bounding height: %.0f\n", a.board.BoundingHeight())
		default:
			fmt.Println("layout requires reset or show")
			os.Exit(2)
		}

	case "export":
		if len(args) < 4 {
			fmt.Println("export requires <png|pdf> <out>")
			os.Exit(2)
		}
		sb := a.board.Current()
		switch args[2] {
		case "png":
			err = export.ExportPNG(sb, a.cfg.LayoutParams(), args[3], export.PNGOptions{})
		case "pdf":
			err = export.ExportPDF(sb, a.cfg.LayoutParams(), args[3], export.PDFOptions{})
		default:
			fmt.Println("export format must be png or pdf")
			os.Exit(2)
		}
		if err != nil {
			fail(l, "export", err)
		}
		fmt.Println("exported", args[3])

	case "save":
		if len(args) < 3 {
			fmt.Println("save requires <name>")
			os.Exit(2)
		}
		if err := a.snapshots.SaveBookmark(ctx, args[2], a.board.Current()); err != nil {
			fail(l, "save bookmark", err)
		}
		fmt.Println("saved bookmark", args[2])

	case "load":
		if len(args) < 3 {
			fmt.Println("load requires <name>")
			os.Exit(2)
		}
		sb, err := a.snapshots.LoadBookmark(ctx, args[2])
		if err != nil {
			fail(l, "load bookmark", err)
		}
		if _, err := a.board.Dispatch(board.ReplaceBoard{Board: sb}); err != nil {
			fail(l, "load bookmark", err)
		}
		a.autosave(ctx)
		fmt.Printf("loaded %q: %s (%d panels)\n", args[2], sb.Title, len(sb.Panels))

	case "bookmarks":
		list, err := a.snapshots.ListBookmarks(ctx)
		if err != nil {
			fail(l, "list bookmarks", err)
		}
		if len(list) == 0 {
			fmt.Println("no bookmarks")
			return
		}
		for _, b := range list {
			fmt.Printf("%-24s %s\n", b.Name, b.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}

	default:
		usage()
		os.Exit(2)
	}
}

func panelIDArg(args []string) int {
	if len(args) < 3 {
		fmt.Println(args[1], "requires <panelID>")
		usage()
		os.Exit(2)
	}
	id, err := strconv.Atoi(args[2])
	if err != nil || id < 1 {
		fmt.Printf("invalid panel id %q\n", args[2])
		os.Exit(2)
	}
	return id
}

func fail(l *slog.Logger, op string, err error) {
	// in-flight rejections are expected user-facing outcomes, not faults
	if !errors.Is(err, generate.ErrGenerationInFlight) {
		l.Error(op+" failed", slog.Any("err", err))
	}
	fmt.Println("Error:", err)
	os.Exit(1)
}
