// Package tasks transfers playlists from a source service to a destination service.
//
// # Transfer
//
// [Engine.Transfer] processes source playlists one at a time, in order:
//
//  1. Tracks come with the [SourcePlaylist] or are fetched from the source client
//  2. Each track is searched in the destination catalog as "<name> <artists>" with a limit of one candidate
//     - searches for one playlist run concurrently, bounded by the configured worker count and paced by a rate limiter
//     - a miss or a failed search skips that track
//  3. A playlist with no matches is not created and its result carries a [TransferError] of kind [NoMatchesFound]
//  4. Otherwise the playlist is created under the source name and the matches are added in source order
//
// A failure on one playlist is recorded on its [models.TransferResult] and never stops the batch.
//
// # Undo
//
// The engine remembers the playlists created by its latest Transfer call. [Engine.UndoLastTransfer] deletes them and forgets
// them, so a second call does nothing. [Engine.Restore] reloads that list from the transfer history.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends never block: when the channel is full the update is dropped.
package tasks
