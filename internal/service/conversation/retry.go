package conversation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"pairchat/internal/utils/log"

	"go.uber.org/zap"
)

// retry runs fn up to 1+StorageRetries times. A missing blob is passed
// through untouched; every other persistent failure becomes ErrStorage.
func (s *Store) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %w", ErrStorage, op, ctx.Err())
		}
		if attempt >= s.opts.StorageRetries {
			break
		}

		log.Debug("storage operation failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))

		t := time.NewTimer(s.opts.RetryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %s: %w", ErrStorage, op, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
