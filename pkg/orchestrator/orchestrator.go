package orchestrator

import (
	"context"
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"google.golang.org/grpc"

	"github.com/helvethink/gitlab-promoter/pkg/config"
	"github.com/helvethink/gitlab-promoter/pkg/gate"
	"github.com/helvethink/gitlab-promoter/pkg/git"
	"github.com/helvethink/gitlab-promoter/pkg/gitlab"
	"github.com/helvethink/gitlab-promoter/pkg/ratelimit"
	"github.com/helvethink/gitlab-promoter/pkg/registry"
	"github.com/helvethink/gitlab-promoter/pkg/resolver"
	"github.com/helvethink/gitlab-promoter/pkg/schemas"
)

const tracerName = "gitlab-promoter"

// CommitResolver normalizes commit references.
type CommitResolver interface {
	Resolve(ctx context.Context, ref schemas.CommitRef) (schemas.ResolvedCommit, error)
}

// CandidateLister gathers candidate commits for interactive selection.
type CandidateLister interface {
	Candidates(ctx context.Context, limit int) (*schemas.CandidateSet, error)
}

// ImageResolver derives and validates registry coordinates.
type ImageResolver interface {
	Resolve(commit schemas.ResolvedCommit) schemas.ImageReference
	Exists(ctx context.Context, ref schemas.ImageReference) (bool, error)
}

// HistorySource reads reconciled deployment history.
type HistorySource interface {
	History(
		ctx context.Context,
		environment schemas.Environment,
		workflows []schemas.WorkflowIdentifier,
		minCount int,
		perQueryLimit int,
	) ([]schemas.DeploymentRecord, error)
}

// DispatchSender emits the approved promotion to the executor.
type DispatchSender interface {
	Dispatch(
		ctx context.Context,
		environment schemas.Environment,
		commit schemas.ResolvedCommit,
		method schemas.DispatchMethod,
	) (schemas.DispatchHandle, error)
}

// Confirmer walks the operator confirmation protocol.
type Confirmer interface {
	Confirm(d gate.Decision) error
	AcknowledgeRisk(reason string) error
}

// Picker offers candidates for interactive selection.
type Picker func(candidates []schemas.ResolvedCommit, title string) (schemas.ResolvedCommit, error)

// Orchestrator holds the components of one promotion run. Every invocation
// is a one-shot process: there is no persisted state layer, history lives
// entirely in the external CI system and the registry.
type Orchestrator struct {
	Config config.Config  // Application configuration settings
	Gitlab *gitlab.Client // GitLab API client

	Resolver   CommitResolver
	Candidates CandidateLister
	Images     ImageResolver
	HistoryRdr HistorySource
	Dispatcher DispatchSender
	Gate       Confirmer
	Pick       Picker

	// UUID uniquely identifies this orchestration run. It is handed to the
	// executor so a dispatched pipeline can be traced back to its decision.
	UUID uuid.UUID
}

// New creates and initializes a new Orchestrator instance.
// It sets up tracing, the GitLab client, the local repository access and all
// decision components.
func New(ctx context.Context, cfg config.Config, version string) (o Orchestrator, err error) {
	o.Config = cfg
	o.UUID = uuid.New()

	// Configure distributed tracing if an OpenTelemetry gRPC endpoint is specified
	if err = configureTracing(ctx, cfg.OpenTelemetry.GRPCEndpoint); err != nil {
		return
	}

	o.Gitlab, err = gitlab.NewClient(gitlab.ClientConfig{
		URL:              cfg.Gitlab.URL,
		Token:            cfg.Gitlab.Token,
		DisableTLSVerify: !cfg.Gitlab.EnableTLSVerify,
		UserAgentVersion: version,
		ReadinessURL:     cfg.Gitlab.HealthURL,
		RateLimiter:      ratelimit.NewLocalLimiter(cfg.Gitlab.MaximumRequestsPerSecond, cfg.Gitlab.BurstableRequestsPerSecond),
	})
	if err != nil {
		return
	}

	// Version detection enables server-side pipeline name filtering on
	// recent instances. Failing it only costs efficiency, not correctness.
	if err := o.Gitlab.RefreshVersion(ctx); err != nil {
		log.WithError(err).Warn("could not detect GitLab version, using client-side workflow filtering")
	}

	repo := git.NewRepository(cfg.Git.WorkDir)

	o.Resolver = resolver.New(repo, o.Gitlab, o.Gitlab, cfg.Gitlab.Project)
	o.Candidates = resolver.NewAggregator(repo, o.Gitlab, o.Gitlab, cfg.Gitlab.Project, cfg.Git.TrunkBranch)
	o.Images = registry.New(o.Gitlab, cfg.Gitlab.Project, cfg.Registry.Host, cfg.Registry.Repository)
	o.HistoryRdr = NewHistoryReader(o.Gitlab, cfg.Gitlab.Project)
	o.Dispatcher = NewDispatcher(o.Gitlab, cfg.Gitlab.Project, cfg.Git.TrunkBranch, cfg.Environments, o.UUID)
	o.Gate = gate.New(os.Stdin, os.Stdout, cfg.Gate.MaximumAttempts)
	o.Pick = gate.Pick

	return
}

// configureTracing sets up OpenTelemetry tracing via a gRPC endpoint.
// If no endpoint is provided, tracing support is skipped.
func configureTracing(ctx context.Context, grpcEndpoint string) error {
	if len(grpcEndpoint) == 0 {
		log.Debug("open-telemetry.grpc_endpoint is not configured, skipping open telemetry support")

		return nil
	}

	log.WithFields(log.Fields{
		"open-telemetry_grpc_endpoint": grpcEndpoint,
	}).Info("open-telemetry gRPC endpoint provided, initializing connection..")

	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(grpcEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()), // nolint: staticcheck
	)

	traceExp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("gitlab-promoter"),
		),
	)
	if err != nil {
		return err
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExp)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)

	return nil
}
