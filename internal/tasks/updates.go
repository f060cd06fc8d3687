package tasks

import "fmt"

// ProgressUpdate represents a progress event during a reconciliation pass.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline stage
	Step    int    // Current step number within the stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data for advanced consumers
}

// Pipeline stage enumeration
type Phase int

const (
	FetchRemote Phase = iota
	ScanLibrary
	Deduplicate
	Decide
	Execute
	Finished
)

func (p Phase) String() string {
	switch p {
	case FetchRemote:
		return "fetch_remote"
	case ScanLibrary:
		return "scan_library"
	case Deduplicate:
		return "deduplicate"
	case Decide:
		return "decide"
	case Execute:
		return "execute"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func fetchRemoteUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRemote,
		Step:    step,
		Total:   total,
		Message: "Fetching playlists from Tidal...",
	}
}

func scanLibraryUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanLibrary,
		Step:    step,
		Total:   total,
		Message: "Scanning playlist directories...",
	}
}

func dedupUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Deduplicate,
		Step:    step,
		Total:   total,
		Message: "Resolving primary copies...",
	}
}

func decideUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Decide,
		Step:    step,
		Total:   total,
		Message: "Generating sync decisions...",
	}
}

func executeUpdate(step, total int, dec *DecisionResult) ProgressUpdate {
	if dec == nil {
		return ProgressUpdate{
			Phase:   Execute,
			Step:    step,
			Total:   total,
			Message: "Executing sync decisions...",
		}
	}
	return ProgressUpdate{
		Phase:   Execute,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, dec.Action, dec.Reason),
	}
}

func finishedUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: "Reconciliation pass finished",
		Data:    result,
	}
}
