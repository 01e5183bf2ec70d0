// ABOUTME: Output helpers shared by CLI commands.
// ABOUTME: Colored status lines, column padding and session checks.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	faint  = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

func disableColor() { color.NoColor = true }

func success(cmd *cobra.Command, format string, args ...any) {
	green.Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", args...)
}

func warn(cmd *cobra.Command, format string, args ...any) {
	yellow.Fprintf(cmd.ErrOrStderr(), "⚠ "+format+"\n", args...)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// requireSession returns the current session, or a hint to sign in.
func requireSession(roles ...models.Role) (*models.Session, error) {
	sess, err := application.Auth.Authorize(roles...)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return nil, fmt.Errorf("%w: run 'forma login <email>' first", err)
	case errors.Is(err, auth.ErrForbidden):
		return nil, fmt.Errorf("%w (signed in as %s)", err, application.Auth.Session().Role)
	}
	return sess, err
}

// readLine reads one trimmed line from the command's input.
func readLine(cmd *cobra.Command, prompt string) string {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
