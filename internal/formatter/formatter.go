// package formatter renders reconciliation results to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"tidalsync/internal/tasks"
)

// ReportToText renders a sync result as a plain text report.
func ReportToText(result *tasks.SyncResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Sync started: %s\n", result.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", result.Duration().Round(time.Millisecond)))
	buf.WriteString(fmt.Sprintf("Success: %t\n\n", result.Success))

	for _, summary := range result.Summaries() {
		buf.WriteString(fmt.Sprintf("[%s]\n", summary.Component))
		for _, key := range sortedKeys(summary.Counts) {
			buf.WriteString(fmt.Sprintf("  %s: %d\n", key, summary.Counts[key]))
		}
		for _, e := range summary.Errors {
			buf.WriteString(fmt.Sprintf("  error: %s\n", e))
		}
		buf.WriteString("\n")
	}

	if len(result.Errors) > 0 {
		buf.WriteString(fmt.Sprintf("Errors (%d):\n", len(result.Errors)))
		for _, e := range result.Errors {
			buf.WriteString(fmt.Sprintf("  - %s\n", e))
		}
	}

	return buf.Bytes()
}

// ReportToMarkdown renders a sync result as a Markdown report with one
// section per pipeline stage.
func ReportToMarkdown(result *tasks.SyncResult) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Sync Report\n\n")
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", result.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", result.Duration().Round(time.Millisecond)))
	buf.WriteString(fmt.Sprintf("**Success**: %t\n\n", result.Success))

	for _, summary := range result.Summaries() {
		buf.WriteString(fmt.Sprintf("## %s\n\n", summary.Component))
		buf.WriteString("| Metric | Count |\n|---|---|\n")
		for _, key := range sortedKeys(summary.Counts) {
			buf.WriteString(fmt.Sprintf("| %s | %d |\n", key, summary.Counts[key]))
		}
		buf.WriteString("\n")
		for _, e := range summary.Errors {
			buf.WriteString(fmt.Sprintf("- error: %s\n", e))
		}
		if len(summary.Errors) > 0 {
			buf.WriteString("\n")
		}
	}

	if len(result.Errors) > 0 {
		buf.WriteString(fmt.Sprintf("## Errors (%d)\n\n", len(result.Errors)))
		for _, e := range result.Errors {
			buf.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	return buf.Bytes()
}

// ReportToJSON renders a sync result as indented JSON.
func ReportToJSON(result *tasks.SyncResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// DecisionsToText renders a decision set as a human-readable plan, highest
// priority first.
func DecisionsToText(decisions *tasks.SyncDecisions) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Plan: %d decision(s)\n", len(decisions.Decisions)))
	buf.WriteString(fmt.Sprintf("  download: %d  create symlink: %d  update symlink: %d  remove symlink: %d  remove file: %d  no action: %d\n\n",
		decisions.TracksToDownload,
		decisions.SymlinksToCreate,
		decisions.SymlinksToUpdate,
		decisions.SymlinksToRemove,
		decisions.FilesToRemove,
		decisions.NoActionNeeded))

	ordered := make([]tasks.DecisionResult, len(decisions.Decisions))
	copy(ordered, decisions.Decisions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, dec := range ordered {
		if dec.Action == tasks.NoAction {
			continue
		}
		path := dec.TargetPath
		if path == "" {
			path = dec.SourcePath
		}
		buf.WriteString(fmt.Sprintf("  [%2d] %-15s %s (%s)\n", dec.Priority, dec.Action, path, dec.Reason))
	}

	return buf.Bytes()
}

// DecisionsToCSV renders a decision set as CSV with columns: Action,
// Priority, Playlist, Track, Source, Target, Reason.
func DecisionsToCSV(decisions *tasks.SyncDecisions) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Action", "Priority", "Playlist", "Track", "Source", "Target", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, dec := range decisions.Decisions {
		record := []string{
			dec.Action.String(),
			strconv.Itoa(dec.Priority),
			dec.PlaylistID,
			dec.TrackID,
			dec.SourcePath,
			dec.TargetPath,
			dec.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DedupToText renders a deduplication analysis as plain text.
func DedupToText(result *tasks.DedupResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks in multiple playlists: %d\n", result.MultiPlaylist))
	buf.WriteString(fmt.Sprintf("Primary ownership decisions: %d\n\n", result.DecisionsMade))

	for _, dec := range result.Decisions {
		buf.WriteString(fmt.Sprintf("  %s -> %s (%s), %d symlink(s)\n",
			dec.TrackID, dec.PrimaryPlaylistName, dec.Reason, len(dec.SymlinkPlaylistIDs)))
	}

	return buf.Bytes()
}

// DiffToText renders a state diff grouped by change type.
func DiffToText(state *tasks.SyncState) []byte {
	var buf bytes.Buffer

	if len(state.Changes) == 0 {
		buf.WriteString("No differences between remote and catalog.\n")
		return buf.Bytes()
	}

	histogram := state.Summary()
	types := make([]string, 0, len(histogram))
	for t := range histogram {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		changes := state.ByType(tasks.ChangeType(t))
		buf.WriteString(fmt.Sprintf("%s (%d):\n", t, len(changes)))
		for _, c := range changes {
			if c.PlaylistName != "" {
				buf.WriteString(fmt.Sprintf("  [%s] %s\n", c.PlaylistName, c.Description))
			} else {
				buf.WriteString(fmt.Sprintf("  %s\n", c.Description))
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// WriteReport writes rendered report data to a file.
func WriteReport(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
