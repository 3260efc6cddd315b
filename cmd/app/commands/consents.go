package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
)

type consentOutput struct {
	RequestingApp  string    `json:"requesting_app"`
	DestinationApp string    `json:"destination_app"`
	Capability     string    `json:"capability"`
	GrantedAt      time.Time `json:"granted_at"`
}

// RunListConsents prints every consent grant a user has given.
func RunListConsents(
	ctx context.Context,
	useCase consentUseCase.ConsentUseCase,
	writer io.Writer,
	userID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	consents, err := useCase.ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list consents: %w", err)
	}

	outputs := make([]consentOutput, 0, len(consents))
	for _, consent := range consents {
		outputs = append(outputs, consentOutput{
			RequestingApp:  consent.RequestingAppName,
			DestinationApp: consent.DestinationAppName,
			Capability:     consent.Capability,
			GrantedAt:      consent.GrantedAt,
		})
	}

	if format == "json" {
		return outputJSON(outputs, writer)
	}

	if len(outputs) == 0 {
		_, _ = fmt.Fprintf(writer, "No consents granted by %s\n", userID)
		return nil
	}
	for _, output := range outputs {
		_, _ = fmt.Fprintf(writer, "%s -> %s\t%s\t%s\n",
			output.RequestingApp,
			output.DestinationApp,
			output.Capability,
			output.GrantedAt.Format(time.RFC3339),
		)
	}
	return nil
}

// RunRevokeUserConsents deletes every consent grant of one user.
func RunRevokeUserConsents(
	ctx context.Context,
	useCase consentUseCase.ConsentUseCase,
	logger *slog.Logger,
	writer io.Writer,
	userID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	count, err := useCase.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke consents: %w", err)
	}

	logger.Info("user consents revoked", slog.String("user_id", userID), slog.Int64("count", count))

	if format == "json" {
		return outputJSON(map[string]any{"user_id": userID, "revoked": count}, writer)
	}
	_, _ = fmt.Fprintf(writer, "Revoked %d consent(s) of %s\n", count, userID)
	return nil
}

// RunRevokeAllConsents deletes every consent grant in the registry. Unless yes is
// set, the operator must confirm by typing "yes".
func RunRevokeAllConsents(
	ctx context.Context,
	useCase consentUseCase.ConsentUseCase,
	logger *slog.Logger,
	io IOTuple,
	yes bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if !yes {
		_, _ = fmt.Fprint(io.Writer, "This deletes every consent grant. Type 'yes' to continue: ")
		answer, err := bufio.NewReader(io.Reader).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			_, _ = fmt.Fprintln(io.Writer, "Aborted")
			return nil
		}
	}

	count, err := useCase.RevokeAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke consents: %w", err)
	}

	logger.Warn("all consents revoked", slog.Int64("count", count))

	if format == "json" {
		return outputJSON(map[string]any{"revoked": count}, io.Writer)
	}
	_, _ = fmt.Fprintf(io.Writer, "Revoked %d consent(s)\n", count)
	return nil
}
