package provisioner

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

func init() {
	Register("log", func(logger zerolog.Logger) (engine.Provisioner, error) {
		return &LogBackend{logger: logger}, nil
	})
}

// LogBackend is a provisioning backend that performs no real work: it
// logs every call and mints fresh instance identifiers. It stands in for
// a real backend while one is being brought up, and lets a full apply
// cycle (including history recording) be exercised end to end.
type LogBackend struct {
	logger zerolog.Logger
}

// NewLogBackend creates a log-only backend.
func NewLogBackend(logger zerolog.Logger) *LogBackend {
	return &LogBackend{logger: logger}
}

// Deploy logs the request and returns a new instance identifier.
func (b *LogBackend) Deploy(ctx context.Context, opts engine.DeployOptions, service string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	instanceID := uuid.New().String()
	b.logger.Info().
		Str("backend", "log").
		Str("service", service).
		Str("node", opts.Node).
		Str("shard", opts.Shard).
		Str("image", opts.Image).
		Str("instance", instanceID).
		Msg("deploy")
	return instanceID, nil
}

// Undeploy logs the request.
func (b *LogBackend) Undeploy(ctx context.Context, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.logger.Info().
		Str("backend", "log").
		Str("instance", instanceID).
		Msg("undeploy")
	return nil
}

// Reprovision logs the request.
func (b *LogBackend) Reprovision(ctx context.Context, instanceID, imageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.logger.Info().
		Str("backend", "log").
		Str("instance", instanceID).
		Str("image", imageID).
		Msg("reprovision")
	return nil
}
