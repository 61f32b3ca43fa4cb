package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/logger"
)

// Evaluate resolves every feature for the attributes in req.
//
// Flow: L1 (decision cache) -> Engine -> Response
//
// The response carries "generation" (number) and "values" (struct).
// It returns:
//   - INVALID_ARGUMENT if an attribute is not a string, number or bool.
//   - UNAVAILABLE until rules are loaded.
func (a *API) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	ev, err := a.decisions.Evaluate(req.AsMap())
	if err != nil {
		return nil, toStatus(log, err)
	}

	_, log = logger.With(ctx, slog.Uint64("generation", ev.Generation))
	log.Debug("context evaluated", slog.Bool("cached", ev.Cached))

	values, err := structpb.NewStruct(ev.Values)
	if err != nil {
		log.Error("failed to encode values", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"generation": structpb.NewNumberValue(float64(ev.Generation)),
		"values":     structpb.NewStructValue(values),
	}}, nil
}

// Explain is Evaluate plus "decisions" (one per group) and "stats" (graph
// cache counters). It is never served from the decision cache.
func (a *API) Explain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	res, err := a.decisions.Explain(req.AsMap())
	if err != nil {
		return nil, toStatus(log, err)
	}

	out, err := toStruct(res)
	if err != nil {
		log.Error("failed to encode explanation", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func toStatus(log *slog.Logger, err error) error {
	var invalid *decision.InvalidContextError
	switch {
	case errors.As(err, &invalid):
		// Log as Warn because it's a client error, not a server failure.
		log.Warn("bad request", slog.String("error", err.Error()))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, decision.ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())
	default:
		log.Error("evaluation failed", slog.String("error", err.Error()))
		return status.Error(codes.Internal, "evaluation failed")
	}
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
