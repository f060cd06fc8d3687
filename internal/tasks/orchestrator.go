package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// SyncResult is the full record of one reconciliation pass.
type SyncResult struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Fetch            *FetchStats
	Scan             *ScanStats
	Dedup            *DedupResult
	Decisions        *SyncDecisions
	Execution        *ExecutionResult
	PlaylistsRemoved int

	// Errors aggregates every stage-level and per-item failure.
	Errors  []string
	Success bool
}

// Duration returns the wall-clock length of the pass.
func (r *SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summaries returns the per-stage reporting structures, in pipeline order,
// for the stages that ran.
func (r *SyncResult) Summaries() []Summary {
	var out []Summary
	if r.Fetch != nil {
		out = append(out, r.Fetch.Summary())
	}
	if r.Scan != nil {
		out = append(out, r.Scan.Summary())
	}
	if r.Dedup != nil {
		out = append(out, r.Dedup.Summary())
	}
	if r.Decisions != nil {
		out = append(out, r.Decisions.Summary())
	}
	if r.Execution != nil {
		out = append(out, r.Execution.Summary())
	}
	return out
}

// SyncOrchestrator drives the five-stage reconciliation pipeline: fetch,
// scan, deduplicate, decide, execute. Stage failures before the decision
// stage are recorded and the pass continues on whatever state the catalog
// holds; a failure generating decisions aborts before anything executes.
type SyncOrchestrator struct {
	fetcher  *RemoteFetcher
	scanner  *LibraryScanner
	dedup    *Deduplicator
	engine   *DecisionEngine
	executor *Executor
	logger   *log.Logger
}

// NewSyncOrchestrator creates a SyncOrchestrator from its stage workers.
func NewSyncOrchestrator(
	fetcher *RemoteFetcher,
	scanner *LibraryScanner,
	dedup *Deduplicator,
	engine *DecisionEngine,
	executor *Executor,
	logger *log.Logger,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		fetcher:  fetcher,
		scanner:  scanner,
		dedup:    dedup,
		engine:   engine,
		executor: executor,
		logger:   logger,
	}
}

// sendProgress delivers an update without ever blocking the pipeline; a
// slow or absent consumer just misses updates.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RunFullSync executes one full reconciliation pass. The returned result is
// never nil; Success reports whether the pass completed with zero errors.
func (o *SyncOrchestrator) RunFullSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{StartedAt: time.Now()}
	cutoff := result.StartedAt

	sendProgress(progress, fetchRemoteUpdate(1, 5))
	fetchStats, err := o.fetcher.FetchAllPlaylists(ctx, true)
	if err != nil {
		o.logger.Error("remote fetch failed, continuing on catalog state", "err", err)
		result.Errors = append(result.Errors, fmt.Sprintf("fetch: %v", err))
	} else {
		result.Fetch = fetchStats
		result.Errors = append(result.Errors, prefixErrors("fetch", fetchStats.Errors)...)

		removed, err := o.fetcher.MarkRemovedPlaylists(cutoff)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch: %v", err))
		} else {
			result.PlaylistsRemoved = removed
		}
	}

	sendProgress(progress, scanLibraryUpdate(2, 5))
	scanStats, err := o.scanner.ScanAllPlaylists()
	if err != nil {
		o.logger.Error("library scan failed, continuing on catalog state", "err", err)
		result.Errors = append(result.Errors, fmt.Sprintf("scan: %v", err))
	} else {
		result.Scan = scanStats
		result.Errors = append(result.Errors, prefixErrors("scan", scanStats.Errors)...)
	}

	sendProgress(progress, dedupUpdate(3, 5))
	dedupResult, err := o.dedup.AnalyzeAllTracks()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("dedup: %v", err))
	} else {
		if err := o.dedup.ApplyDecisions(dedupResult); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dedup: %v", err))
		}
		result.Dedup = dedupResult
		result.Errors = append(result.Errors, prefixErrors("dedup", dedupResult.Errors)...)
	}

	sendProgress(progress, decideUpdate(4, 5))
	decisions, err := o.engine.AnalyzeAllPlaylists()
	if err != nil {
		// Executing against a half-built plan is worse than doing nothing.
		result.Errors = append(result.Errors, fmt.Sprintf("decide: %v", err))
		result.FinishedAt = time.Now()
		sendProgress(progress, finishedUpdate(result))
		return result, fmt.Errorf("decision generation failed: %w", err)
	}
	result.Decisions = decisions

	sendProgress(progress, executeUpdate(5, 5, nil))
	if len(decisions.Decisions) == 0 {
		o.logger.Info("nothing to execute, library is in sync")
	} else {
		if err := o.executor.EnsurePlaylistDirectories(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execute: %v", err))
		}
		execResult, err := o.executor.ExecuteDecisions(ctx, decisions)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execute: %v", err))
		}
		if execResult != nil {
			result.Execution = execResult
			result.Errors = append(result.Errors, prefixErrors("execute", execResult.Errors)...)
		}
	}

	result.FinishedAt = time.Now()
	result.Success = len(result.Errors) == 0

	o.logger.Info("reconciliation pass finished",
		"duration", result.Duration().Round(time.Millisecond),
		"errors", len(result.Errors),
		"success", result.Success)
	sendProgress(progress, finishedUpdate(result))

	return result, nil
}

// SyncPlaylist runs the decide and execute stages for a single playlist,
// using whatever catalog state the last fetch and scan left behind.
func (o *SyncOrchestrator) SyncPlaylist(ctx context.Context, playlistID string) (*SyncResult, error) {
	result := &SyncResult{StartedAt: time.Now()}

	decisions, err := o.engine.AnalyzePlaylistSync(playlistID)
	if err != nil {
		return nil, err
	}
	result.Decisions = decisions

	if len(decisions.Decisions) > 0 {
		if err := o.executor.EnsurePlaylistDirectories(playlistID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execute: %v", err))
		}
		execResult, err := o.executor.ExecuteDecisions(ctx, decisions)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("execute: %v", err))
		}
		if execResult != nil {
			result.Execution = execResult
			result.Errors = append(result.Errors, prefixErrors("execute", execResult.Errors)...)
		}
	}

	result.FinishedAt = time.Now()
	result.Success = len(result.Errors) == 0
	return result, nil
}

func prefixErrors(stage string, errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, stage+": "+e)
	}
	return out
}
