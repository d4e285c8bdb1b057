package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "check violation",
			err:  fmt.Errorf("update project: %w", &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "projects_paid_amount_check"}),
			want: ErrConsistency,
		},
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "incomes_payment_id_key"},
			want: ErrConsistency,
		},
		{
			name: "foreign key violation",
			err:  &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "payments_invoice_id_fkey"},
			want: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestClassify_KeepsOtherErrors(t *testing.T) {
	err := errors.New("boom")
	assert.Same(t, err, classify(err))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows, "payment"), ErrNotFound)

	err := notFound(errors.New("boom"), "payment")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get payment")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, want: true},
		{name: "check violation", err: &pgconn.PgError{Code: pgerrcode.CheckViolation}, want: false},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "not found", err: ErrNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
