package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "student key", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintSessionStudent}, want: ErrDuplicateRecord},
		{name: "device key", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintSessionDevice}, want: ErrDeviceInUse},
		{name: "wrapped student key", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintSessionStudent}), want: ErrDuplicateRecord},
		{name: "missing session", err: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, want: ErrSessionNotFound},
		{name: "query canceled", err: &pgconn.PgError{Code: pgerrcode.QueryCanceled}, want: ErrStoreUnavailable},
		{name: "serialization", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: ErrStoreUnavailable},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, want: ErrStoreUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrStoreUnavailable},
		{name: "conn done", err: sql.ErrConnDone, want: ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapPostgresError(tt.err), tt.want)
		})
	}
}

func TestMapPostgresError_passthrough(t *testing.T) {
	require.NoError(t, mapPostgresError(nil))

	other := errors.New("syntax")
	require.Equal(t, other, mapPostgresError(other))

	err := mapPostgresError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "sessions_pkey"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrDuplicateRecord))
	require.False(t, errors.Is(err, ErrStoreUnavailable))
}
