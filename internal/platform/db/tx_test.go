package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, shared.KindNotFound, shared.KindOf(Classify(pgx.ErrNoRows)))
	assert.Equal(t, shared.KindConflict, shared.KindOf(Classify(&pgconn.PgError{Code: "40001"})))
	assert.Equal(t, shared.KindValidation, shared.KindOf(Classify(&pgconn.PgError{Code: "23P01"})))
	assert.ErrorIs(t, Classify(shared.ErrPeriodClosed), shared.ErrPeriodClosed)
	assert.Equal(t, shared.KindInternal, shared.KindOf(Classify(errors.New("boom"))))
}
