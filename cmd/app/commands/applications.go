package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
)

type applicationOutput struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunCreateApplication registers a new application by name.
//
// Requirements: Database must be migrated and accessible.
func RunCreateApplication(
	ctx context.Context,
	applicationUseCase consentUseCase.ApplicationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	name string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("creating application", slog.String("name", name))

	application, err := applicationUseCase.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if format == "json" {
		return outputJSON(applicationOutput{
			ID:        application.ID,
			Name:      application.Name,
			CreatedAt: application.CreatedAt,
		}, writer)
	}

	_, _ = fmt.Fprintf(writer, "Application created: %s (id %d)\n", application.Name, application.ID)
	return nil
}

// RunAddCapability declares a capability on the application with the given name.
// Declaring an existing capability again is reported but not treated as an error.
func RunAddCapability(
	ctx context.Context,
	applicationUseCase consentUseCase.ApplicationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	applicationName string,
	capability string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	application, err := applicationUseCase.GetByName(ctx, applicationName)
	if err != nil {
		return fmt.Errorf("failed to find application: %w", err)
	}

	added, err := applicationUseCase.AddCapability(ctx, application.ID, capability)
	if err != nil {
		return fmt.Errorf("failed to add capability: %w", err)
	}

	logger.Info("capability declared",
		slog.String("application", applicationName),
		slog.String("capability", capability),
		slog.Bool("added", added),
	)

	if format == "json" {
		return outputJSON(map[string]any{
			"application": applicationName,
			"capability":  capability,
			"added":       added,
		}, writer)
	}

	if added {
		_, _ = fmt.Fprintf(writer, "Capability %s added to %s\n", capability, applicationName)
	} else {
		_, _ = fmt.Fprintf(writer, "Capability %s already declared by %s\n", capability, applicationName)
	}
	return nil
}

// RunListApplications prints every registered application with its capabilities.
func RunListApplications(
	ctx context.Context,
	applicationUseCase consentUseCase.ApplicationUseCase,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	applications, err := applicationUseCase.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}

	outputs := make([]applicationOutput, 0, len(applications))
	for _, application := range applications {
		capabilities, err := applicationUseCase.ListCapabilities(ctx, application.ID)
		if err != nil {
			return fmt.Errorf("failed to list capabilities of %s: %w", application.Name, err)
		}
		outputs = append(outputs, applicationOutput{
			ID:           application.ID,
			Name:         application.Name,
			Capabilities: capabilities,
			CreatedAt:    application.CreatedAt,
		})
	}

	if format == "json" {
		return outputJSON(outputs, writer)
	}

	if len(outputs) == 0 {
		_, _ = fmt.Fprintln(writer, "No applications registered")
		return nil
	}
	for _, output := range outputs {
		caps := "-"
		if len(output.Capabilities) > 0 {
			caps = strings.Join(output.Capabilities, ", ")
		}
		_, _ = fmt.Fprintf(writer, "%d\t%s\t%s\n", output.ID, output.Name, caps)
	}
	return nil
}
