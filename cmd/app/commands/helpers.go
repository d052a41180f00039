// Package commands implements the CLI command actions.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"

	"github.com/jwilger/authorizir/internal/app"
	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/config"
)

// newContainer loads configuration and builds the DI container.
func newContainer() (*app.Container, *slog.Logger) {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	return container, container.Logger()
}

// closeContainer shuts the container down, logging any failure.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("container shutdown failed", slog.Any("error", err))
	}
}

// closeMigrate releases the migration source and database handles.
func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Error("failed to close migration source", slog.Any("error", sourceErr))
	}
	if dbErr != nil {
		logger.Error("failed to close migration database", slog.Any("error", dbErr))
	}
}

// parseKindArg resolves a CLI kind argument.
func parseKindArg(arg string) (domain.Kind, error) {
	kind, ok := domain.ParseKind(arg)
	if !ok {
		return "", fmt.Errorf("unknown entity kind %q (want subject, object, or permission)", arg)
	}
	return kind, nil
}

// requireArgs checks the fixed argument count of a command.
func requireArgs(args []string, count int, usage string) error {
	if len(args) != count {
		return fmt.Errorf("expected %d arguments: %s", count, usage)
	}
	return nil
}
