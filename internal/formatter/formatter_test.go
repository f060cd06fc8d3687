package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidalsync/internal/tasks"
)

func sampleResult() *tasks.SyncResult {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return &tasks.SyncResult{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Fetch:      &tasks.FetchStats{PlaylistsFetched: 2, TracksCreated: 5},
		Scan:       &tasks.ScanStats{FilesScanned: 5, FilesMatched: 4, Unmatched: 1},
		Execution:  &tasks.ExecutionResult{Downloads: 3, SymlinksCreated: 1},
		Errors:     []string{"fetch: playlist Broken: timeout"},
		Success:    false,
	}
}

func sampleDecisions() *tasks.SyncDecisions {
	decisions := &tasks.SyncDecisions{
		Decisions: []tasks.DecisionResult{
			{
				Action:     tasks.NoAction,
				PlaylistID: "pl-1",
				TrackID:    "t-1",
				Reason:     "symlink valid",
			},
			{
				Action:     tasks.CreateSymlink,
				Priority:   2,
				PlaylistID: "pl-1",
				TrackID:    "t-2",
				SourcePath: "/music/Beta/a.mp3",
				TargetPath: "/music/Alpha/a.mp3",
				Reason:     "track needs symlink",
			},
			{
				Action:     tasks.DownloadTrack,
				Priority:   10,
				PlaylistID: "pl-1",
				TrackID:    "t-3",
				TargetPath: "/music/Alpha/b.mp3",
				Reason:     "track not downloaded",
			},
		},
		TracksToDownload: 1,
		SymlinksToCreate: 1,
		NoActionNeeded:   1,
	}
	return decisions
}

func TestReportToText(t *testing.T) {
	out := string(ReportToText(sampleResult()))

	for _, want := range []string{
		"Success: false",
		"[fetch]",
		"[scan]",
		"[execute]",
		"files_matched: 4",
		"Errors (1):",
		"fetch: playlist Broken: timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestReportToMarkdown(t *testing.T) {
	out := string(ReportToMarkdown(sampleResult()))

	if !strings.HasPrefix(out, "# Sync Report") {
		t.Errorf("markdown report missing title:\n%s", out)
	}
	for _, want := range []string{
		"## fetch",
		"| Metric | Count |",
		"| downloads | 3 |",
		"## Errors (1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown report missing %q:\n%s", want, out)
		}
	}
}

func TestReportToJSON(t *testing.T) {
	data, err := ReportToJSON(sampleResult())
	if err != nil {
		t.Fatalf("failed to render JSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded["Success"] != false {
		t.Errorf("unexpected success value: %v", decoded["Success"])
	}
}

func TestDecisionsToText(t *testing.T) {
	out := string(DecisionsToText(sampleDecisions()))

	if !strings.Contains(out, "Plan: 3 decision(s)") {
		t.Errorf("plan header missing:\n%s", out)
	}
	if strings.Contains(out, "symlink valid") {
		t.Errorf("no-op decisions should not be listed:\n%s", out)
	}

	// Highest priority first.
	downloadIdx := strings.Index(out, "download_track")
	symlinkIdx := strings.Index(out, "create_symlink")
	if downloadIdx == -1 || symlinkIdx == -1 || downloadIdx > symlinkIdx {
		t.Errorf("expected download listed before symlink:\n%s", out)
	}
}

func TestDecisionsToCSV(t *testing.T) {
	data, err := DecisionsToCSV(sampleDecisions())
	if err != nil {
		t.Fatalf("failed to render CSV: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 records, got %d rows", len(records))
	}
	if records[0][0] != "Action" || records[0][6] != "Reason" {
		t.Errorf("unexpected header row: %v", records[0])
	}
	if records[3][0] != "download_track" || records[3][1] != "10" {
		t.Errorf("unexpected record: %v", records[3])
	}
}

func TestDedupToText(t *testing.T) {
	result := &tasks.DedupResult{
		MultiPlaylist: 1,
		DecisionsMade: 1,
		Decisions: []tasks.PrimaryFileDecision{
			{
				TrackID:             "t-1",
				PrimaryPlaylistName: "Alpha",
				SymlinkPlaylistIDs:  []string{"pl-b", "pl-c"},
				Reason:              "first alphabetically",
			},
		},
	}

	out := string(DedupToText(result))
	if !strings.Contains(out, "Alpha (first alphabetically), 2 symlink(s)") {
		t.Errorf("unexpected dedup rendering:\n%s", out)
	}
}

func TestDiffToText(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		out := string(DiffToText(&tasks.SyncState{}))
		if !strings.Contains(out, "No differences") {
			t.Errorf("unexpected empty diff rendering:\n%s", out)
		}
	})

	t.Run("GroupedByType", func(t *testing.T) {
		state := &tasks.SyncState{}
		state.Add(tasks.Change{Type: tasks.TrackAdded, PlaylistName: "Chill", Description: "X added"})
		state.Add(tasks.Change{Type: tasks.PlaylistRemoved, Description: "Y gone"})

		out := string(DiffToText(state))
		if !strings.Contains(out, "track_added (1):") || !strings.Contains(out, "playlist_removed (1):") {
			t.Errorf("missing type groups:\n%s", out)
		}
		if !strings.Contains(out, "[Chill] X added") {
			t.Errorf("playlist-scoped change not labeled:\n%s", out)
		}
	})
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := WriteReport(path, []byte("hello")); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("unexpected report contents: %q, %v", data, err)
	}
}
