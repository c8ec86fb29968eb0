// Package apperr holds the error taxonomy shared by the scheduling core and
// the Gateway boundary. Domain packages wrap these sentinels with %w so that
// callers can match either the specific error or its class.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrNetwork           = errors.New("network error")
	ErrAuthorization     = errors.New("not authorized")
)

var classes = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrInvalidTransition,
	ErrConflict,
	ErrValidation,
	ErrNetwork,
	ErrAuthorization,
}

// InvalidArgument builds an ErrInvalidArgument with a formatted detail.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Classified reports whether err already belongs to one of the taxonomy classes.
func Classified(err error) bool {
	for _, c := range classes {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// FromPg classifies an error returned by pgx into the taxonomy.
// Errors that do not match any class are returned unchanged.
func FromPg(err error) error {
	if err == nil || Classified(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", pgErr.Code == "23P01":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %w", ErrValidation, err)
		case pgErr.Code == "42501", strings.HasPrefix(pgErr.Code, "28"):
			return fmt.Errorf("%w: %w", ErrAuthorization, err)
		case strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr), errors.As(err, &netErr), pgconn.Timeout(err):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return err
}
