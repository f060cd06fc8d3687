// Package tasks implements the reconciliation engine keeping the local music
// library consistent with the remote playlist service.
//
// One reconciliation pass runs five stages strictly in order:
//
//  1. [RemoteFetcher] pulls remote playlist/track state into the catalog.
//  2. [LibraryScanner] walks the playlist directory tree and records which
//     files and symlinks already exist and whether links are valid.
//  3. [Deduplicator] decides, per track in more than one playlist, which
//     membership owns the primary copy.
//  4. [DecisionEngine] turns catalog state into an ordered, priority-ranked
//     action plan, one decision per playlist-track pair.
//  5. [Executor] runs the frozen plan with per-action failure isolation,
//     conflict resolution and dry-run support.
//
// [SyncOrchestrator] sequences the stages and aggregates every sub-result
// into one [SyncResult]. [ComparePlaylists], [ComparePlaylistTracks] and
// [CompareTrackMetadata] are side-effect-free diffing utilities producing
// [Change] records for observability; they never mutate the catalog.
//
// Every stage accumulates its own error list and keeps going on per-item
// failures; re-running a pass against unchanged remote and filesystem state
// produces only no-op decisions.
package tasks
