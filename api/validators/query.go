package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// ParseQueryID reads an optional positive integer filter. nil means absent.
func ParseQueryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a positive integer", key).
			WithDetails(map[string]any{"field": key})
	}
	return &id, nil
}
