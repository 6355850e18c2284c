package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	gojson "github.com/goccy/go-json"

	"github.com/getsentry/stackprof/internal/httputil"
)

type TakResponse struct {
	Result int `json:"result"`
}

// tak is the Takeuchi function, a cheap way to keep a goroutine on CPU with
// a deep and varied stack.
func tak(x, y, z int) int {
	if y < x {
		return tak(tak(x-1, y, z), tak(y-1, z, x), tak(z-1, x, y))
	}
	return z
}

func (e *environment) getTak(w http.ResponseWriter, r *http.Request) {
	params, logger, ok := httputil.GetIntQueryParameters(w, r, map[string]int{
		"x": 22,
		"y": 16,
		"z": 8,
	})
	if !ok {
		return
	}

	s := sentry.StartSpan(r.Context(), "workload")
	s.Description = "Run the Takeuchi function"
	result := tak(params["x"], params["y"], params["z"])
	s.Finish()

	b, err := gojson.Marshal(TakResponse{Result: result})
	if err != nil {
		logger.Err(err).Msg("can't marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
