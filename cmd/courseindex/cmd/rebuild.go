package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/search"
	"github.com/Aman-CERP/courseindex/internal/ui"
)

// runRebuild reindexes every scope of the configured fixture through the
// daemon or a local service, reporting progress to a ui.Renderer.
func runRebuild(ctx context.Context, cmd *cobra.Command, opts reindexOptions, plain bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fx, err := loadContent(cfg)
	if err != nil {
		return err
	}

	b, closeBackend, err := openBackend(ctx, cfg, opts.local)
	if err != nil {
		return err
	}
	defer closeBackend()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(plain || opts.jsonOutput),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle(cfg.Content.FixturePath)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	libraries := make([]string, len(fx.Libraries))
	for i, k := range fx.Libraries {
		libraries[i] = k.String()
	}
	courses := make([]string, len(fx.Courses))
	for i, k := range fx.Courses {
		courses[i] = k.String()
	}

	stats := rebuild(ctx, b, renderer, libraries, courses)
	stats.Backend = backendName(cfg)
	renderer.Complete(stats)

	slog.Info("rebuild_complete",
		slog.Int("courses", stats.Courses),
		slog.Int("libraries", stats.Libraries),
		slog.Int("indexed", stats.Indexed),
		slog.Int("errors", stats.Errors))

	if stats.Errors > 0 {
		return fmt.Errorf("%d of %d scopes failed to reindex", stats.Errors, len(libraries)+len(courses))
	}
	return nil
}

// rebuild runs libraries, then courses, then a consistency check of each
// course. Failures are reported and counted; the pass continues.
func rebuild(ctx context.Context, b backend, r ui.Renderer, libraries, courses []string) ui.CompletionStats {
	start := time.Now()
	stats := ui.CompletionStats{}

	runStage := func(stage ui.Stage, scopes []string, kind string) {
		r.UpdateProgress(ui.ProgressEvent{Stage: stage, Total: len(scopes), Message: "starting"})
		for i, scope := range scopes {
			if ctx.Err() != nil {
				return
			}
			res, err := b.Reindex(ctx, daemon.ReindexParams{Kind: kind, Scope: scope})
			if err != nil {
				stats.Errors++
				r.AddError(ui.ErrorEvent{Scope: scope, Err: remoteError(err)})
				continue
			}
			if kind == "library" {
				stats.Libraries++
			} else {
				stats.Courses++
			}
			stats.Indexed += res.Indexed
			stats.Removed += res.Removed
			stats.Skipped += res.Skipped
			r.UpdateProgress(ui.ProgressEvent{
				Stage: stage, Current: i + 1, Total: len(scopes), Scope: scope, Indexed: res.Indexed,
			})
		}
	}

	runStage(ui.StageLibraries, libraries, "library")
	runStage(ui.StageCourses, courses, "course")

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageVerify, Total: len(courses), Message: "starting"})
	for i, scope := range courses {
		if ctx.Err() != nil {
			break
		}
		res, err := b.Check(ctx, scope)
		switch {
		case err != nil:
			stats.Warnings++
			r.AddError(ui.ErrorEvent{Scope: scope, Err: remoteError(err), IsWarn: true})
		case !res.Consistent:
			stats.Warnings++
			r.AddError(ui.ErrorEvent{
				Scope:  scope,
				Err:    fmt.Errorf("%d missing, %d stale documents", len(res.Missing), len(res.Stale)),
				IsWarn: true,
			})
		}
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageVerify, Current: i + 1, Total: len(courses), Scope: scope})
	}

	stats.Duration = time.Since(start)
	return stats
}

// backendName reports the backend the service will open for cfg.
func backendName(cfg *config.Config) string {
	b, err := search.ParseBackend(cfg.Engine.Backend)
	if err != nil {
		return cfg.Engine.Backend
	}
	return string(b)
}
