package server

import (
	"net/http"
	"time"

	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/STTM-NSU/paper-league/internal/scheduler"
	"github.com/bytedance/sonic"
)

type StatusSource interface {
	Status() []scheduler.JobStatus
}

type health struct {
	Status  string                `json:"status"`
	Started time.Time             `json:"started"`
	Jobs    []scheduler.JobStatus `json:"jobs"`
}

// NewHealthHandler serves liveness on /healthz together with the state of
// scheduled jobs. Liveness does not depend on the last job outcome.
func NewHealthHandler(jobs StatusSource, logger logger.Logger) http.Handler {
	started := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		body, err := sonic.Marshal(health{Status: "ok", Started: started, Jobs: jobs.Status()})
		if err != nil {
			logger.Errorf("%s: can't encode health", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(body); err != nil {
			logger.Warnf("%s: can't write health", err)
		}
	})
	return mux
}
