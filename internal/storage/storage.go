package storage

import (
	"context"

	"bondScope/internal/model"
)

// Storage defines a sink for applied pool operations.
type Storage interface {
	PutOpBatch(ctx context.Context, ops []model.OpRecord) error
}
