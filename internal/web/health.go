package web

import (
	"errors"
	"fmt"
	"net/http"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

type routeRegistrar interface {
	Get(pattern string, h http.HandlerFunc)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "OK"})
}

// RegisterHealthCheck adds GET /health. Registration is best effort: a
// failure, including a panic from the router, is returned for the caller to
// log and never stops the server.
func RegisterHealthCheck(r routeRegistrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to register health route: %v", rec)
		}
	}()

	if r == nil {
		return errors.New("no router to register health route on")
	}
	r.Get("/health", healthHandler)
	return nil
}
