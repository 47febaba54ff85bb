package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

// Client calls a remote ReliabilityEngine over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection to target. Close the returned connection when done.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return NewClient(conn), conn, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ScoreCriticality(ctx context.Context, in *ScoreCriticalityRequest, opts ...grpc.CallOption) (*models.Criticality, error) {
	return invoke[models.Criticality](ctx, c.cc, "ScoreCriticality", in, opts)
}

func (c *Client) DecideStrategy(ctx context.Context, in *DecideStrategyRequest, opts ...grpc.CallOption) (*models.Decision, error) {
	return invoke[models.Decision](ctx, c.cc, "DecideStrategy", in, opts)
}

func (c *Client) EvaluateReliability(ctx context.Context, in *EvaluateReliabilityRequest, opts ...grpc.CallOption) (*EvaluateReliabilityResponse, error) {
	return invoke[EvaluateReliabilityResponse](ctx, c.cc, "EvaluateReliability", in, opts)
}

func (c *Client) FitWeibull(ctx context.Context, in *FitWeibullRequest, opts ...grpc.CallOption) (*FitWeibullResponse, error) {
	return invoke[FitWeibullResponse](ctx, c.cc, "FitWeibull", in, opts)
}

func (c *Client) ComposeSystem(ctx context.Context, in *ComposeSystemRequest, opts ...grpc.CallOption) (*models.SystemRamResult, error) {
	return invoke[models.SystemRamResult](ctx, c.cc, "ComposeSystem", in, opts)
}

func (c *Client) UpsertCriticality(ctx context.Context, in *UpsertCriticalityRequest, opts ...grpc.CallOption) (*UpsertCriticalityResponse, error) {
	return invoke[UpsertCriticalityResponse](ctx, c.cc, "UpsertCriticality", in, opts)
}

func (c *Client) ComposeHierarchy(ctx context.Context, in *ComposeHierarchyRequest, opts ...grpc.CallOption) (*ComposeHierarchyResponse, error) {
	return invoke[ComposeHierarchyResponse](ctx, c.cc, "ComposeHierarchy", in, opts)
}

func (c *Client) HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	return invoke[HealthResponse](ctx, c.cc, "HealthCheck", in, opts)
}
