package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/logger"
)

// handleEvaluate processes POST /v1/evaluate.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	ev, err := a.decisions.Evaluate(req.Context)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, EvaluateResponse{
		Generation: ev.Generation,
		Values:     ev.Values,
		Cached:     ev.Cached,
	})
}

// handleExplain processes POST /v1/explain.
func (a *API) handleExplain(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	res, err := a.decisions.Explain(req.Context)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, res)
}

// handleGeneration processes GET /v1/generation. It answers even before
// rules are loaded, describing the empty generation.
func (a *API) handleGeneration(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, a.decisions.Generation())
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (EvaluateRequest, bool) {
	var req EvaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, ErrorResponse{
				Code:    CodePayloadTooLarge,
				Message: "Request body is too large",
			})
			return req, false
		}

		logger.FromContext(r.Context()).Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    CodeInvalidJSON,
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return req, false
	}
	return req, true
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *decision.InvalidContextError
	switch {
	case errors.As(err, &invalid):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    CodeInvalidContext,
			Message: "Context attributes must be strings, numbers or booleans",
			Details: []ErrorDetail{{Field: "context", Issue: invalid.Err.Error()}},
		})
	case errors.Is(err, decision.ErrNotReady):
		w.Header().Set("Retry-After", "1")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{
			Code:    CodeNotReady,
			Message: "Rules are not loaded yet",
		})
	default:
		logger.FromContext(r.Context()).Error("evaluation failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    CodeInternal,
			Message: "Internal server error",
		})
	}
}
