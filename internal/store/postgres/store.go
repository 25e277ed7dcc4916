// Package postgres is the Postgres-backed implementation of core.Store.
//
// Every commit request runs in its own transaction: the batch row is
// created on the first request of a run, records are written with COPY,
// and the batch counters are advanced before commit. Rollback deletes a
// batch's records and marks it rolled_back.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrBatchNotFound is returned when no batch has the given id.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchRolledBack is returned when committing into a reversed batch.
	ErrBatchRolledBack = errors.New("batch already rolled back")

	// ErrInvalidRequest marks requests rejected before touching the database.
	ErrInvalidRequest = errors.New("invalid store request")
)

var recordColumns = []string{"id", "batch_id", "record_type", "row_number", "identity_key", "data"}

// Store persists imported records and their batches.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New returns a Store on pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CommitBatch writes one batch atomically.
func (s *Store) CommitBatch(ctx context.Context, req core.BatchRequest) (*core.BatchResponse, error) {
	batchID, err := parseID(req.BatchID)
	if err != nil {
		return nil, err
	}
	if _, ok := core.Definition(req.RecordType); !ok {
		return nil, fmt.Errorf("%w: unknown record type %q", ErrInvalidRequest, req.RecordType)
	}
	if len(req.RowNumbers) != 0 && len(req.RowNumbers) != len(req.Items) {
		return nil, fmt.Errorf("%w: %d items but %d row numbers", ErrInvalidRequest, len(req.Items), len(req.RowNumbers))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := claimBatch(ctx, tx, batchID, req); err != nil {
		return nil, err
	}

	existing, err := existingKeys(ctx, tx, req.RecordType, identityKeys(req.RecordType, req.Items))
	if err != nil {
		return nil, err
	}

	plan := planInserts(req.RecordType, req.Items, req.RowNumbers, existing, req.Options.UpdateExisting)

	if len(plan.Replace) > 0 {
		_, err := tx.Exec(ctx,
			`DELETE FROM imported_records WHERE record_type = $1 AND identity_key = ANY($2)`,
			string(req.RecordType), plan.Replace)
		if err != nil {
			return nil, fmt.Errorf("replace existing records: %w", err)
		}
	}

	if len(plan.Rows) > 0 {
		rows := make([][]any, len(plan.Rows))
		for i, r := range plan.Rows {
			rows[i] = []any{
				pgtype.UUID{Bytes: r.ID, Valid: true},
				batchID,
				string(req.RecordType),
				int32(r.RowNumber),
				pgtype.Text{String: r.Key, Valid: r.Key != ""},
				r.Data,
			}
		}

		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"imported_records"}, recordColumns, pgx.CopyFromRows(rows))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return nil, fmt.Errorf("copy records: %s (%s)", pgErr.Detail, pgErr.SQLState())
			}
			return nil, fmt.Errorf("copy records: %w", err)
		}
		if int(copied) != len(rows) {
			return nil, fmt.Errorf("copy records: wrote %d of %d", copied, len(rows))
		}
	}

	resp := &core.BatchResponse{
		TotalProcessed: len(req.Items),
		SuccessCount:   len(plan.Rows),
		ErrorCount:     len(plan.Errors),
		SkippedCount:   plan.Skipped,
		Errors:         plan.Errors,
		ImportedIDs:    plan.importedIDs(),
	}
	if resp.Errors == nil {
		resp.Errors = []core.BatchError{}
	}

	_, err = tx.Exec(ctx, `
		UPDATE import_batches
		SET total_rows = total_rows + $2,
		    success_count = success_count + $3,
		    error_count = error_count + $4,
		    skipped_count = skipped_count + $5
		WHERE id = $1`,
		batchID, resp.TotalProcessed, resp.SuccessCount, resp.ErrorCount, resp.SkippedCount)
	if err != nil {
		return nil, fmt.Errorf("update batch counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return resp, nil
}

// claimBatch creates the batch row on first use and rejects batches that
// have already been rolled back.
func claimBatch(ctx context.Context, tx pgx.Tx, id pgtype.UUID, req core.BatchRequest) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO import_batches (id, record_type, file_name, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		id, string(req.RecordType), req.FileName, core.BatchActive)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	var status, recordType string
	err = tx.QueryRow(ctx,
		`SELECT status, record_type FROM import_batches WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &recordType)
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}
	if status == core.BatchRolledBack {
		return ErrBatchRolledBack
	}
	if recordType != string(req.RecordType) {
		return fmt.Errorf("batch holds %s records, got %s", recordType, req.RecordType)
	}
	return nil
}

// existingKeys reports which of keys are already stored for rt.
func existingKeys(ctx context.Context, tx pgx.Tx, rt core.RecordType, keys []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(keys) == 0 {
		return found, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT DISTINCT identity_key FROM imported_records WHERE record_type = $1 AND identity_key = ANY($2)`,
		string(rt), keys)
	if err != nil {
		return nil, fmt.Errorf("check existing keys: %w", err)
	}

	stored, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan existing keys: %w", err)
	}
	for _, k := range stored {
		found[k] = true
	}
	return found, nil
}

// ListBatches returns one page of batches, newest first.
func (s *Store) ListBatches(ctx context.Context, page, pageSize int) (*core.BatchPage, error) {
	page, pageSize = core.NormalizePage(page, pageSize)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM import_batches`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count batches: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, created_at, record_type, file_name, status,
		       total_rows, success_count, error_count, skipped_count, rolled_back_at
		FROM import_batches
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	batches, err := pgx.CollectRows(rows, scanBatch)
	if err != nil {
		return nil, fmt.Errorf("scan batches: %w", err)
	}
	if batches == nil {
		batches = []core.ImportBatch{}
	}

	return &core.BatchPage{
		Batches:  batches,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func scanBatch(row pgx.CollectableRow) (core.ImportBatch, error) {
	var (
		b          core.ImportBatch
		recordType string
		rolledBack pgtype.Timestamptz
	)
	err := row.Scan(&b.ID, &b.CreatedAt, &recordType, &b.FileName, &b.Status,
		&b.TotalRows, &b.SuccessCount, &b.ErrorCount, &b.SkippedCount, &rolledBack)
	if err != nil {
		return b, err
	}
	b.RecordType = core.RecordType(recordType)
	if rolledBack.Valid {
		t := rolledBack.Time
		b.RolledBackAt = &t
	}
	return b, nil
}

// RollbackBatch deletes every record of a batch and marks it rolled back.
// Reversing a batch twice succeeds with zero rows deleted.
func (s *Store) RollbackBatch(ctx context.Context, batchID string) (*core.RollbackResult, error) {
	id, err := parseID(batchID)
	if err != nil {
		return nil, err
	}
	result := &core.RollbackResult{BatchID: batchID}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM import_batches WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}

	if status == core.BatchRolledBack {
		result.AlreadyRolledBack = true
		return result, nil
	}

	tag, err := tx.Exec(ctx, `DELETE FROM imported_records WHERE batch_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete records: %w", err)
	}
	result.RowsDeleted = tag.RowsAffected()

	_, err = tx.Exec(ctx,
		`UPDATE import_batches SET status = $2, rolled_back_at = $3 WHERE id = $1`,
		id, core.BatchRolledBack, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark rolled back: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// parseID converts a batch id string into a pgtype.UUID.
func parseID(s string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(s); err != nil {
		return id, fmt.Errorf("%w: invalid batch id %q: %v", ErrInvalidRequest, s, err)
	}
	return id, nil
}
