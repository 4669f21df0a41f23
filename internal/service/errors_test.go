package service

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(errors.Wrap(ErrPostingNotFound, "load")))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "NOT_FOUND", KindNotFound.String())
	assert.Equal(t, "internal error", MessageOf(errors.New("dial tcp: refused")))
}

func TestStorageErr(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}

	err := storageErr(errors.Wrap(unique, "insert"), "insert posting", ErrDuplicatePosting)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, ErrDuplicatePosting.Msg, MessageOf(err))

	err = storageErr(&pgconn.PgError{Code: "23503"}, "insert posting", ErrDuplicatePosting)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestRefErr(t *testing.T) {
	err := refErr(errors.Wrap(&pgconn.PgError{Code: "23503"}, "insert"), "apply", ErrPostingNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	err = refErr(&pgconn.PgError{Code: "23505"}, "apply", ErrPostingNotFound)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestPaginate(t *testing.T) {
	p, err := paginate(2, 21)
	assert.NoError(t, err)
	assert.Equal(t, 2, p.TotalPages)

	_, err = paginate(2, 20)
	assert.Equal(t, ErrPageOutOfRange, errors.Cause(err))

	p, err = paginateOrEmpty(1, 0)
	assert.NoError(t, err)
	assert.Zero(t, p.TotalItems)

	assert.Equal(t, ErrInvalidPage, checkPage(0))
	assert.Equal(t, uint64(40), offset(3))
}
