// Package repositories implements SQLite persistence for transfer history.
//
// [TransferRepository] records every transfer run with one row per source playlist. The recorded destination
// playlist ids let a later process undo the most recent run, and the run summaries back the history command.
package repositories
