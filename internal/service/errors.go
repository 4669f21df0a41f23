package service

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

var kindCodes = map[Kind]string{
	KindInternal:        "INTERNAL",
	KindValidation:      "VALIDATION",
	KindUnauthenticated: "UNAUTHENTICATED",
	KindForbidden:       "FORBIDDEN",
	KindNotFound:        "NOT_FOUND",
	KindConflict:        "CONFLICT",
}

func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// Error is a failure the caller can branch on by Kind. Msg is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidPage        = &Error{Kind: KindValidation, Msg: "invalid page number"}
	ErrPageOutOfRange     = &Error{Kind: KindValidation, Msg: "page out of range"}
	ErrNoMatchingPostings = &Error{Kind: KindNotFound, Msg: "no matching postings"}
	ErrNoPreference       = &Error{Kind: KindNotFound, Msg: "no preference signal"}
	ErrNothingToRecommend = &Error{Kind: KindNotFound, Msg: "nothing to recommend"}

	ErrPostingNotFound     = &Error{Kind: KindNotFound, Msg: "posting not found"}
	ErrNotPostingOwner     = &Error{Kind: KindForbidden, Msg: "not the owner of this posting"}
	ErrDuplicatePosting    = &Error{Kind: KindConflict, Msg: "posting already exists"}
	ErrApplicationNotFound = &Error{Kind: KindNotFound, Msg: "application not found"}
	ErrNotApplicant        = &Error{Kind: KindForbidden, Msg: "not the owner of this application"}
	ErrAlreadyApplied      = &Error{Kind: KindConflict, Msg: "already applied"}

	ErrUserNotFound       = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrEmailTaken         = &Error{Kind: KindConflict, Msg: "email already registered"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Msg: "invalid email or password"}
	ErrInvalidToken       = &Error{Kind: KindUnauthenticated, Msg: "invalid or expired token"}
)

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// refErr wraps a store failure; a dangling foreign key becomes missing.
func refErr(err error, msg string, missing *Error) error {
	if pgCode(err) == pgForeignKeyViolation {
		return &Error{Kind: missing.Kind, Msg: missing.Msg, Err: err}
	}
	return errors.Wrap(err, msg)
}

// storageErr wraps a store failure; unique violations become conflict.
func storageErr(err error, msg string, conflict *Error) error {
	if conflict != nil && isUniqueViolation(err) {
		return &Error{Kind: conflict.Kind, Msg: conflict.Msg, Err: err}
	}
	return errors.Wrap(err, msg)
}
