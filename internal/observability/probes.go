package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// CheckResult is the outcome of one Checker in a readiness report.
type CheckResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Readiness is the JSON body of the readiness probe.
type Readiness struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

// liveness reports that the process serves HTTP at all. It never consults
// dependencies, so a slow backend cannot get the pod restarted.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker concurrently under the probe timeout and
// answers 503 unless all of them pass.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	report := s.check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if report.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	// The status code is already written; the body is for humans.
	_ = json.NewEncoder(w).Encode(report)
}

type namedResult struct {
	name string
	CheckResult
}

func (s *Server) check(ctx context.Context) Readiness {
	results := make(chan namedResult, len(s.checkers))
	for _, c := range s.checkers {
		go func() {
			start := time.Now()
			err := c.Check(ctx)
			res := namedResult{name: c.Name(), CheckResult: CheckResult{
				Status:    "up",
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			}}
			if err != nil {
				res.Status = "down"
				res.Error = err.Error()
			}
			results <- res
		}()
	}

	report := Readiness{Ready: true, Checks: make(map[string]CheckResult, len(s.checkers))}
	for range s.checkers {
		res := <-results
		if res.Status != "up" {
			report.Ready = false
			// Warn only: the orchestrator retries the probe.
			s.logger.Warn("readiness check failed",
				slog.String("check", res.name),
				slog.String("error", res.Error),
			)
		}
		report.Checks[res.name] = res.CheckResult
	}
	return report
}
