package output

import (
	"errors"
	"fmt"

	"psicoapp/internal/config"
	"psicoapp/internal/reconcile"
	"psicoapp/internal/search"
	"psicoapp/internal/store"
)

// Describe turns an error into a message for the operator. Partial writes
// are reported with their counts so nobody assumes the whole set changed.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var validation *reconcile.ValidationError
	var partial *reconcile.PartialUpdateError
	var empty *reconcile.EmptyUndoError
	var conn *store.ConnectivityError
	var cfgErr *config.ConfigError

	switch {
	case errors.As(err, &validation):
		return "Nothing was changed: " + validation.Error() + "."
	case errors.As(err, &partial):
		msg := fmt.Sprintf("Only %d of %d records were updated; the batches already written were kept.",
			partial.Confirmed, partial.Requested)
		if n := len(partial.Unconfirmed); n > 0 {
			msg += fmt.Sprintf(" %d records were not confirmed.", n)
		}
		if partial.Err != nil {
			msg += " Cause: " + partial.Err.Error()
		}
		return msg + " Review the names before retrying."
	case errors.As(err, &empty):
		return "Nothing to undo in this session."
	case errors.As(err, &conn):
		return fmt.Sprintf("Could not reach the database (%s). Check the connection and try again.", conn.Op)
	case errors.Is(err, search.ErrTermTooShort):
		return "Search term too short."
	case errors.As(err, &cfgErr):
		return "Configuration problem: " + cfgErr.Error()
	default:
		return err.Error()
	}
}
