package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetIntQueryParameters reads the specified integer query parameters from
// the request. A missing parameter takes its default value. If a parameter
// is not an integer, it'll write a 400 status code as well as the reason
// into the ResponseWriter and return false.
func GetIntQueryParameters(w http.ResponseWriter, r *http.Request, defaults map[string]int) (map[string]int, zerolog.Logger, bool) {
	params := make(map[string]int, len(defaults))
	logger := log.With()
	query := r.URL.Query()
	for key, value := range defaults {
		if raw := query.Get(key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, fmt.Sprintf("expected an integer for the %s query parameter", key), http.StatusBadRequest)
				return nil, zerolog.Nop(), false
			}
			value = v
		}
		params[key] = value
		logger = logger.Int(key, value)
	}
	return params, logger.Logger(), true
}
