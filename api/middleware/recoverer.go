package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so the server can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newRecorder(w, false)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				ctx := r.Context()
				err := fmt.Errorf("handler panic: %v", v)
				if logg != nil {
					ctx = logg.WithField(ctx, "route", routePattern(r))
					logg.Error(ctx, "panic.recovered", err)
				}
				if rec.wroteHeader() {
					return
				}
				responses.WriteError(ctx, logg, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "internal error"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
