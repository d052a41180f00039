package commands

import (
	"context"
	"fmt"
	"log/slog"
)

// RunInit reconciles the persisted static state with the declaration seed
// file. The path argument overrides the SEED_FILE configuration when set.
func RunInit(ctx context.Context, seedPath string) error {
	container, logger := newContainer()
	defer closeContainer(container, logger)

	if seedPath == "" {
		seedPath = container.Config().SeedFile
	}

	logger.Info("reconciling declarations", slog.String("seed", seedPath))

	if err := reconcileFromSeed(ctx, container, seedPath); err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	return nil
}
