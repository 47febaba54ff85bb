package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/engine"
	"github.com/miradorstack/mirador-rcm/internal/models"
	"github.com/miradorstack/mirador-rcm/internal/policy"
	"github.com/miradorstack/mirador-rcm/internal/repo"
	"github.com/miradorstack/mirador-rcm/internal/services"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	server      string
	policyPath  string
	taskLibrary string
	json        bool
	timeout     time.Duration
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "rcmctl",
		Short:         "Score failure modes, choose maintenance strategies and model reliability",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "", "Address of a running rcm-engine; computes locally when empty")
	root.PersistentFlags().StringVar(&opts.policyPath, "policy", "", "Policy YAML for local computation")
	root.PersistentFlags().StringVar(&opts.taskLibrary, "task-library", "", "Task library YAML for local decisions")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Deadline for each request")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for local computation")

	root.AddCommand(
		newScoreCmd(opts),
		newDecideCmd(opts),
		newEvaluateCmd(opts),
		newFitCmd(opts),
		newComposeCmd(opts),
		newHierarchyCmd(opts),
	)
	return root
}

// connect returns the engine the command talks to and a release func.
func connect(opts *globalOptions) (api.ReliabilityEngineServer, func(), error) {
	if opts.server != "" {
		client, conn, err := api.Dial(opts.server)
		if err != nil {
			return nil, nil, err
		}
		return remoteEngine{client: client}, func() { _ = conn.Close() }, nil
	}

	logger := utils.NewLoggerTo(os.Stderr, opts.logLevel, false)
	p, err := policy.Load(opts.policyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}
	library, err := engine.NewTaskLibrary(opts.taskLibrary, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load task library: %w", err)
	}
	service := services.NewReliabilityService(logger, policy.Static{P: p}, services.Options{
		Library:     library,
		Records:     repo.NewMemoryCriticalityRepo(),
		RecordStore: "memory",
	})
	return service, func() {}, nil
}

func (o *globalOptions) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

// describe renders gRPC status errors without the rpc error prefix.
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		return fmt.Sprintf("%s: %s", s.Code(), s.Message())
	}
	return err.Error()
}

// remoteEngine adapts api.Client to the server interface so local and remote runs share code.
type remoteEngine struct {
	client *api.Client
	opts   []grpc.CallOption
}

func (r remoteEngine) ScoreCriticality(ctx context.Context, in *api.ScoreCriticalityRequest) (*models.Criticality, error) {
	return r.client.ScoreCriticality(ctx, in, r.opts...)
}

func (r remoteEngine) DecideStrategy(ctx context.Context, in *api.DecideStrategyRequest) (*models.Decision, error) {
	return r.client.DecideStrategy(ctx, in, r.opts...)
}

func (r remoteEngine) EvaluateReliability(ctx context.Context, in *api.EvaluateReliabilityRequest) (*api.EvaluateReliabilityResponse, error) {
	return r.client.EvaluateReliability(ctx, in, r.opts...)
}

func (r remoteEngine) FitWeibull(ctx context.Context, in *api.FitWeibullRequest) (*api.FitWeibullResponse, error) {
	return r.client.FitWeibull(ctx, in, r.opts...)
}

func (r remoteEngine) ComposeSystem(ctx context.Context, in *api.ComposeSystemRequest) (*models.SystemRamResult, error) {
	return r.client.ComposeSystem(ctx, in, r.opts...)
}

func (r remoteEngine) UpsertCriticality(ctx context.Context, in *api.UpsertCriticalityRequest) (*api.UpsertCriticalityResponse, error) {
	return r.client.UpsertCriticality(ctx, in, r.opts...)
}

func (r remoteEngine) ComposeHierarchy(ctx context.Context, in *api.ComposeHierarchyRequest) (*api.ComposeHierarchyResponse, error) {
	return r.client.ComposeHierarchy(ctx, in, r.opts...)
}

func (r remoteEngine) HealthCheck(ctx context.Context, in *api.HealthRequest) (*api.HealthResponse, error) {
	return r.client.HealthCheck(ctx, in, r.opts...)
}

var _ api.ReliabilityEngineServer = remoteEngine{}
