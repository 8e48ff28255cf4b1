package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
)

// #region types
// CheckpointResult is the answer to a Checkpoint call.
type CheckpointResult struct {
	CheckpointID string
	Outcome      string
	Reason       string
	Error        string // set when the engine refused or failed the write
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to a running controller.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to the controller at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing and for sharing one connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close shuts down the gRPC connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #region calls
// AllowedToRun asks the controller for a prefetch decision.
func (c *Client) AllowedToRun(ctx context.Context, app string, fctx features.Context) (policy.Decision, error) {
	in, err := encodeAllowed(app, fctx)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("encode request: %w", err)
	}
	out, err := c.invoke(ctx, "AllowedToRun", in)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("allowed to run rpc: %w", err)
	}
	d, err := decodeDecision(out)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}

// ForegroundChanged reports a transition.
func (c *Client) ForegroundChanged(ctx context.Context, prev, now string) error {
	if _, err := c.invoke(ctx, "ForegroundChanged", encodePair("prev", prev, "now", now)); err != nil {
		return fmt.Errorf("foreground changed rpc: %w", err)
	}
	return nil
}

// TTLExpiredNoNextApp reports that nothing followed app.
func (c *Client) TTLExpiredNoNextApp(ctx context.Context, app string) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"app": structpb.NewStringValue(app)}}
	if _, err := c.invoke(ctx, "TTLExpiredNoNextApp", in); err != nil {
		return fmt.Errorf("ttl expired rpc: %w", err)
	}
	return nil
}

// PrefetchTTLExpiredNotUsed reports an unused prefetch.
func (c *Client) PrefetchTTLExpiredNotUsed(ctx context.Context, app, prefetched string) error {
	if _, err := c.invoke(ctx, "PrefetchTTLExpiredNotUsed", encodePair("app", app, "prefetched", prefetched)); err != nil {
		return fmt.Errorf("prefetch expired rpc: %w", err)
	}
	return nil
}

// Checkpoint asks the controller to write its models now.
func (c *Client) Checkpoint(ctx context.Context) (CheckpointResult, error) {
	out, err := c.invoke(ctx, "Checkpoint", &structpb.Struct{})
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("checkpoint rpc: %w", err)
	}
	f := out.GetFields()
	return CheckpointResult{
		CheckpointID: f["checkpoint_id"].GetStringValue(),
		Outcome:      f["outcome"].GetStringValue(),
		Reason:       f["reason"].GetStringValue(),
		Error:        f["error"].GetStringValue(),
	}, nil
}

// #endregion calls
