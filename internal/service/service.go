// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take the caller's user ID on every call and pass it down to the
// repository, which scopes every query to it. A row owned by someone else is
// indistinguishable from a row that does not exist.
//
// Services depend on repository interfaces, never on a concrete backend:
// main.go picks SQLite or Postgres, tests pass in-memory fakes.
package service

import (
	"errors"
	"log/slog"

	"github.com/sakif/spacedesk/internal/apperror"
)

// logFailure logs storage failures at Error. Validation, not-found and
// conflict results are normal outcomes and stay quiet.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	if !errors.Is(err, apperror.ErrStorage) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}
