// ABOUTME: Account commands: register, login, logout and whoami.
// ABOUTME: The session persists between invocations in the runtime directory.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
)

var (
	registerName     string
	registerRole     string
	registerPassword string
	loginPassword    string
)

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account and sign in",
	Long: `Create a trainer or client account. The new account is signed in.

EXAMPLES:

  $ forma register ana@example.com --name "Ana Ruiz" --role client
  $ forma register coach@example.com --name "Coach" --role trainer --password s3cret!`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := registerPassword
		if password == "" {
			password = readLine(cmd, "Password: ")
		}

		u, err := application.Auth.Register(cmd.Context(), auth.RegisterInput{
			Name:     registerName,
			Email:    args[0],
			Password: password,
			Role:     models.Role(strings.ToLower(registerRole)),
		})
		if err != nil {
			return err
		}

		success(cmd, "Registered %s (%s) as %s", u.Name, u.Email, u.Role)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in",
	Long: `Sign in with email and password. Prompts for the password when
--password is not given.

The demo accounts use the password "demo123":

  maya@forma.demo   trainer
  leo@forma.demo    client
  sara@forma.demo   client`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = readLine(cmd, "Password: ")
		}

		u, err := application.Auth.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		success(cmd, "Signed in as %s (%s)", u.Name, u.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Auth.Logout(); err != nil {
			return err
		}
		success(cmd, "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := application.Auth.Session()
		if sess == nil {
			yellow.Fprintln(cmd.OutOrStdout(), "Not signed in")
			return nil
		}
		printf(cmd, "%s <%s>\n", sess.Name, sess.Email)
		printf(cmd, "  Role: %s\n", sess.Role)
		printf(cmd, "  ID:   %s\n", sess.UserID)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name (required)")
	registerCmd.Flags().StringVar(&registerRole, "role", string(models.RoleClient), "trainer or client")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", fmt.Sprintf("password, at least %d characters", auth.MinPasswordLength))
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
}
