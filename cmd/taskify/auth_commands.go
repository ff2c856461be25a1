package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var passwordFlag string

var signUpCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthenticate(true),
}

var signInCmd = &cobra.Command{
	Use:   "signin <email>",
	Short: "Sign in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthenticate(false),
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runSignOut,
}

var whoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoAmI,
}

func init() {
	for _, cmd := range []*cobra.Command{signUpCmd, signInCmd} {
		cmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "Account password (default $TASKIFY_PASSWORD, else prompt)")
	}
	rootCmd.AddCommand(signUpCmd, signInCmd, signOutCmd, whoAmICmd)
}

func runAuthenticate(signUp bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		email := strings.TrimSpace(args[0])
		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordFlag, os.Getenv("TASKIFY_PASSWORD"))
		if err != nil {
			return err
		}

		signIn := env.client.SignIn
		if signUp {
			signIn = env.client.SignUp
		}
		session, err := signIn(cmd.Context(), email, password)
		if err != nil {
			return friendlyError(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Email)
		return nil
	}
}

// readPassword takes the flag, then the environment, then one line of in.
func readPassword(in io.Reader, prompt io.Writer, flag, env string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env != "" {
		return env, nil
	}

	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func runSignOut(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if err := env.client.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func runWhoAmI(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	identity, err := env.client.CurrentUser(cmd.Context())
	if err != nil {
		return friendlyError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", identity.Email, identity.ID)
	return nil
}
