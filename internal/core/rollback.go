package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/google/uuid"
)

// InvalidBatchIDMessage is the RollbackError message for malformed ids.
const InvalidBatchIDMessage = "invalid batch id"

// RollbackCoordinator asks the store to reverse a committed import batch.
// It holds no pipeline state and retries nothing.
type RollbackCoordinator struct {
	store Store
}

// NewRollbackCoordinator returns a coordinator for store.
func NewRollbackCoordinator(store Store) *RollbackCoordinator {
	return &RollbackCoordinator{store: store}
}

// Rollback reverses batchID. Every failure is a *RollbackError.
func (c *RollbackCoordinator) Rollback(ctx context.Context, batchID string) (*RollbackResult, error) {
	batchID = strings.TrimSpace(batchID)
	if _, err := uuid.Parse(batchID); err != nil {
		return nil, &RollbackError{BatchID: batchID, Message: InvalidBatchIDMessage, Err: err}
	}

	logger := logging.WithFields(ctx, "batch_id", batchID)

	res, err := c.store.RollbackBatch(ctx, batchID)
	if err != nil {
		logger.Warn("rollback failed", "error", err)
		return nil, &RollbackError{BatchID: batchID, Message: backendMessage(err), Err: err}
	}

	logger.Info("batch rolled back", "rows_deleted", res.RowsDeleted, "already_rolled_back", res.AlreadyRolledBack)
	return res, nil
}

// messager is implemented by store errors that carry a backend detail string.
type messager interface {
	BackendMessage() string
}

func backendMessage(err error) string {
	var m messager
	if errors.As(err, &m) {
		return m.BackendMessage()
	}
	return err.Error()
}
