package dataapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls switchboard.v1.Evaluator over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate resolves attrs remotely and returns the values and the
// generation that produced them.
func (c *Client) Evaluate(ctx context.Context, attrs map[string]any, opts ...grpc.CallOption) (map[string]any, uint64, error) {
	out, err := c.call(ctx, EvaluateMethod, attrs, opts...)
	if err != nil {
		return nil, 0, err
	}
	gen := uint64(out.GetFields()["generation"].GetNumberValue())
	return out.GetFields()["values"].GetStructValue().AsMap(), gen, nil
}

// Explain returns the raw explanation as a map.
func (c *Client) Explain(ctx context.Context, attrs map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	out, err := c.call(ctx, ExplainMethod, attrs, opts...)
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) call(ctx context.Context, method string, attrs map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
