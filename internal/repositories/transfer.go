package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escofresco/transfer/internal/models"
	"github.com/escofresco/transfer/internal/shared"
)

// TransferRun is one recorded transfer invocation.
type TransferRun struct {
	ID          string       `db:"id"`
	Source      string       `db:"source"`
	Destination string       `db:"destination"`
	CreatedAt   time.Time    `db:"created_at"`
	UndoneAt    sql.NullTime `db:"undone_at"`
}

// Undone reports whether the playlists of the run were deleted.
func (r TransferRun) Undone() bool { return r.UndoneAt.Valid }

// RunSummary is a [TransferRun] with totals over its playlists.
type RunSummary struct {
	TransferRun
	Playlists int `db:"playlists"`
	Matched   int `db:"matched"`
	Failed    int `db:"failed"`
}

// TransferRecord is the persisted outcome of one playlist within a run.
type TransferRecord struct {
	ID                    int64  `db:"id"`
	RunID                 string `db:"run_id"`
	Position              int    `db:"position"`
	SourcePlaylistID      string `db:"source_playlist_id"`
	SourcePlaylistName    string `db:"source_playlist_name"`
	DestinationPlaylistID string `db:"destination_playlist_id"`
	Matched               int    `db:"matched"`
	Unmatched             int    `db:"unmatched"`
	Status                string `db:"status"`
	Error                 string `db:"error"`
}

// Result converts the record back into a [models.TransferResult]. The error text is preserved, its type is not.
func (r TransferRecord) Result() models.TransferResult {
	res := models.TransferResult{
		SourceID:      r.SourcePlaylistID,
		SourceName:    r.SourcePlaylistName,
		DestinationID: r.DestinationPlaylistID,
		Matched:       r.Matched,
		Unmatched:     r.Unmatched,
	}
	if r.Error != "" {
		res.Err = errors.New(r.Error)
	}
	return res
}

// TransferRepository persists transfer runs and their per-playlist results.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// RecordTransfer stores a run and its results in one transaction and returns the generated run id.
func (r *TransferRepository) RecordTransfer(ctx context.Context, source, destination string, results []models.TransferResult) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := TransferRun{
		ID:          shared.GenerateID(),
		Source:      source,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO transfer_runs (id, source, destination, created_at)
		VALUES (:id, :source, :destination, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, run); err != nil {
		return "", fmt.Errorf("failed to insert transfer run: %w", err)
	}

	query = `
		INSERT INTO transfer_results (run_id, position, source_playlist_id, source_playlist_name, destination_playlist_id, matched, unmatched, status, error)
		VALUES (:run_id, :position, :source_playlist_id, :source_playlist_name, :destination_playlist_id, :matched, :unmatched, :status, :error)
	`
	for i, res := range results {
		record := TransferRecord{
			RunID:                 run.ID,
			Position:              i,
			SourcePlaylistID:      res.SourceID,
			SourcePlaylistName:    res.SourceName,
			DestinationPlaylistID: res.DestinationID,
			Matched:               res.Matched,
			Unmatched:             res.Unmatched,
			Status:                string(res.Status()),
		}
		if res.Err != nil {
			record.Error = res.Err.Error()
		}
		if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
			return "", fmt.Errorf("failed to insert transfer result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transfer run: %w", err)
	}
	return run.ID, nil
}

// LatestRun returns the most recent run, undone or not.
//
// Returns [shared.ErrNothingToUndo] when no run was ever recorded.
func (r *TransferRepository) LatestRun(ctx context.Context) (*TransferRun, error) {
	query := `
		SELECT id, source, destination, created_at, undone_at
		FROM transfer_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	var run TransferRun
	if err := r.db.GetContext(ctx, &run, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNothingToUndo
		}
		return nil, fmt.Errorf("failed to get latest transfer run: %w", err)
	}
	return &run, nil
}

// Results returns the records of a run in the order the playlists were transferred.
func (r *TransferRepository) Results(ctx context.Context, runID string) ([]TransferRecord, error) {
	query := `
		SELECT id, run_id, position, source_playlist_id, source_playlist_name, destination_playlist_id, matched, unmatched, status, error
		FROM transfer_results
		WHERE run_id = ?
		ORDER BY position
	`

	var records []TransferRecord
	if err := r.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list transfer results: %w", err)
	}
	return records, nil
}

// CreatedPlaylists returns the destination playlists a run created, in transfer order.
func (r *TransferRepository) CreatedPlaylists(ctx context.Context, runID string) ([]models.Playlist, error) {
	records, err := r.Results(ctx, runID)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(records))
	for _, rec := range records {
		if rec.DestinationPlaylistID == "" {
			continue
		}
		playlists = append(playlists, models.Playlist{ID: rec.DestinationPlaylistID, Name: rec.SourcePlaylistName})
	}
	return playlists, nil
}

// MarkUndone stamps the run as undone. Marking an undone run again keeps the first timestamp.
func (r *TransferRepository) MarkUndone(ctx context.Context, runID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE transfer_runs SET undone_at = COALESCE(undone_at, ?) WHERE id = ?",
		time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark transfer run undone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transfer run not found: %s", runID)
	}
	return nil
}

// History returns up to limit runs, newest first. A non-positive limit returns every run.
func (r *TransferRepository) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT r.id, r.source, r.destination, r.created_at, r.undone_at,
			COUNT(t.id) AS playlists,
			COALESCE(SUM(t.matched), 0) AS matched,
			COALESCE(SUM(CASE WHEN t.status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
		FROM transfer_runs r
		LEFT JOIN transfer_results t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?
	`

	var runs []RunSummary
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list transfer history: %w", err)
	}
	return runs, nil
}
