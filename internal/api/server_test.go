package api

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/miradorstack/mirador-rcm/internal/config"
	"github.com/miradorstack/mirador-rcm/internal/models"
)

type stubEngine struct {
	lastScore *ScoreCriticalityRequest
}

func (s *stubEngine) ScoreCriticality(_ context.Context, req *ScoreCriticalityRequest) (*models.Criticality, error) {
	s.lastScore = req
	rpn := req.Severity * req.Occurrence * req.Detection
	return &models.Criticality{FailureModeID: req.FailureModeID, Severity: req.Severity, Occurrence: req.Occurrence, Detection: req.Detection, RPN: rpn, Index: models.CriticalityCritical}, nil
}

func (s *stubEngine) DecideStrategy(_ context.Context, req *DecideStrategyRequest) (*models.Decision, error) {
	return &models.Decision{Flags: req.Flags, Category: req.Flags.Category(), Strategy: models.StrategyRunToFailure}, nil
}

func (s *stubEngine) EvaluateReliability(_ context.Context, req *EvaluateReliabilityRequest) (*EvaluateReliabilityResponse, error) {
	return ToCurveResponse(models.Curve{
		Parameters: req.Parameters,
		Points:     []models.CurvePoint{{T: 0, Reliability: 1, Hazard: math.Inf(1), Density: math.Inf(1)}},
	}), nil
}

func (s *stubEngine) FitWeibull(context.Context, *FitWeibullRequest) (*FitWeibullResponse, error) {
	return nil, status.Error(codes.FailedPrecondition, "insufficient data")
}

func (s *stubEngine) ComposeSystem(_ context.Context, req *ComposeSystemRequest) (*models.SystemRamResult, error) {
	return &models.SystemRamResult{Topology: req.Topology, Reliability: 0.5, HasReliability: true}, nil
}

func (s *stubEngine) UpsertCriticality(context.Context, *UpsertCriticalityRequest) (*UpsertCriticalityResponse, error) {
	return &UpsertCriticalityResponse{Created: true}, nil
}

func (s *stubEngine) ComposeHierarchy(context.Context, *ComposeHierarchyRequest) (*ComposeHierarchyResponse, error) {
	return &ComposeHierarchyResponse{Root: "plant"}, nil
}

func (s *stubEngine) HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "SERVING"}, nil
}

func startBufServer(t *testing.T, srv ReliabilityEngineServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := NewServerOn(lis, config.ServerConfig{GracefulTimeout: time.Second}, srv)
	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServerRoundTrip(t *testing.T) {
	stub := &stubEngine{}
	conn := startBufServer(t, stub)
	client := NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	crit, err := client.ScoreCriticality(ctx, &ScoreCriticalityRequest{FailureModeID: "fm-1", Severity: 8, Occurrence: 6, Detection: 5})
	require.NoError(t, err)
	assert.Equal(t, 240, crit.RPN)
	assert.Equal(t, models.CriticalityCritical, crit.Index)
	require.NotNil(t, stub.lastScore)
	assert.Equal(t, "fm-1", stub.lastScore.FailureModeID)

	decision, err := client.DecideStrategy(ctx, &DecideStrategyRequest{Flags: models.ConsequenceFlags{EconomicConsequence: true}})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryEconomic, decision.Category)

	curve, err := client.EvaluateReliability(ctx, &EvaluateReliabilityRequest{Parameters: models.WeibullParameters{Beta: 0.5, Eta: 10, Horizon: 1}})
	require.NoError(t, err)
	require.Len(t, curve.Points, 1)
	assert.True(t, math.IsInf(float64(curve.Points[0].Hazard), 1))

	res, err := client.ComposeSystem(ctx, &ComposeSystemRequest{Topology: models.Topology{Kind: models.TopologyStandby}})
	require.NoError(t, err)
	assert.Equal(t, models.TopologyStandby, res.Topology.Kind)

	health, err := client.HealthCheck(ctx, &HealthRequest{})
	require.NoError(t, err)
	assert.Equal(t, "SERVING", health.Status)
}

func TestServerPropagatesStatus(t *testing.T) {
	conn := startBufServer(t, &stubEngine{})
	client := NewClient(conn)

	_, err := client.FitWeibull(context.Background(), &FitWeibullRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestServerRegistersHealth(t *testing.T) {
	conn := startBufServer(t, &stubEngine{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestJSONCodecHandlesProtoMessages(t *testing.T) {
	codec := jsonCodec{}
	data, err := codec.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	assert.Contains(t, string(data), "SERVING")

	var decoded healthpb.HealthCheckResponse
	require.NoError(t, codec.Unmarshal(data, &decoded))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, decoded.GetStatus())
}
