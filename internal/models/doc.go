// Package models defines the service-neutral values that flow between the catalog clients, the session controller and the transfer engine.
//
//   - [UserProfile] : the authenticated account on a service
//   - [Playlist] : playlist identity, compared and deduplicated by ID
//   - [Track] : song metadata with an ordered artist list used to build search queries
//   - [TransferResult] : the per-playlist outcome of a transfer
//
// Playlists and tracks are read-only projections of remote state. They are re-fetched every session and never persisted; only transfer results are written to the history tables.
package models
