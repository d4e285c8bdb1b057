package service

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/metrics"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/validation"
)

// read выполняет запрос на чтение и при временном сбое хранилища повторяет его один раз.
// Операции записи через read не проходят.
func (s *Service) read(ctx context.Context, query string, fn func(ctx context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(1, retry.NewConstant(s.readRetryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.IncrementReadRetry(query)
		}

		err := fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}

		if attempt == 1 {
			s.logger.Warn("read failed, retrying",
				zap.String("query", query),
				zap.Error(err),
			)
		}
		return retry.RetryableError(err)
	})
}

func retryable(err error) bool {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, validation.ErrInvalid) {
		return false
	}
	return repository.IsTransient(err)
}
