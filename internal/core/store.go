package core

import (
	"context"
	"time"
)

// DefaultBatchSize is the number of rows submitted per commit request.
const DefaultBatchSize = 100

// Store is the backing-store contract: commit one batch, list committed
// import batches, and reverse a batch by id. Implementations own atomicity
// per request.
type Store interface {
	CommitBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	ListBatches(ctx context.Context, page, pageSize int) (*BatchPage, error)
	RollbackBatch(ctx context.Context, batchID string) (*RollbackResult, error)
}

// BatchRequest carries one sub-batch of an execute run. Every sub-batch of a
// run shares BatchID, so the store records a single ImportBatch per run.
type BatchRequest struct {
	BatchID    string        `json:"batchId"`
	Sequence   int           `json:"sequence"`
	RecordType RecordType    `json:"recordType"`
	FileName   string        `json:"fileName,omitempty"`
	Items      []RawRecord   `json:"items"`
	RowNumbers []int         `json:"rowNumbers"`
	Options    ImportOptions `json:"options"`
}

// BatchError is a per-row failure reported by the store.
type BatchError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// BatchResponse is the store's answer to one BatchRequest.
type BatchResponse struct {
	TotalProcessed int          `json:"totalProcessed"`
	SuccessCount   int          `json:"successCount"`
	ErrorCount     int          `json:"errorCount"`
	SkippedCount   int          `json:"skippedCount"`
	Errors         []BatchError `json:"errors"`
	ImportedIDs    []string     `json:"importedIds"`
}

// Batch status values.
const (
	BatchActive     = "active"
	BatchRolledBack = "rolled_back"
)

// ImportBatch is a committed run as recorded by the store.
type ImportBatch struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"createdAt"`
	RecordType   RecordType `json:"recordType"`
	FileName     string     `json:"fileName,omitempty"`
	Status       string     `json:"status"`
	TotalRows    int        `json:"totalRows"`
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	SkippedCount int        `json:"skippedCount"`
	RolledBackAt *time.Time `json:"rolledBackAt,omitempty"`
}

// BatchPage is one page of import history, newest first.
type BatchPage struct {
	Batches  []ImportBatch `json:"batches"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

// RollbackResult confirms a reversal.
type RollbackResult struct {
	BatchID           string `json:"batchId"`
	RowsDeleted       int64  `json:"rowsDeleted"`
	AlreadyRolledBack bool   `json:"alreadyRolledBack,omitempty"`
}

// NormalizePage clamps paging parameters to sane bounds.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 20
	case pageSize > 200:
		pageSize = 200
	}
	return page, pageSize
}
