package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/config"
	"github.com/levchenko/complychat/internal/retry"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		email := loginEmail
		if email == "" {
			email, err = promptLine(cmd, "Email: ")
			if err != nil {
				return err
			}
		}
		password := loginPassword
		if password == "" {
			password, err = promptLine(cmd, "Password: ")
			if err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		a.wake(ctx)

		var res backend.AuthResult
		err = retry.Do(ctx, func(ctx context.Context) error {
			var lerr error
			res, lerr = a.client.Login(ctx, email, password)
			return lerr
		})
		if err != nil {
			printError("%s", backend.FriendlyAuthError(err, "Login"))
			return err
		}

		printSuccess("Logged in as %s", res.User.Email)
		return nil
	},
}

var (
	registerEmail    string
	registerName     string
	registerPassword string
	registerConfirm  string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		email := registerEmail
		if email == "" {
			email, err = promptLine(cmd, "Email: ")
			if err != nil {
				return err
			}
		}
		name := registerName
		if name == "" {
			name, err = promptLine(cmd, "Full name: ")
			if err != nil {
				return err
			}
		}
		password := registerPassword
		if password == "" {
			password, err = promptLine(cmd, "Password: ")
			if err != nil {
				return err
			}
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters long")
		}
		if registerConfirm != "" && registerConfirm != password {
			return errors.New("passwords do not match")
		}

		ctx := cmd.Context()
		a.wake(ctx)

		var res backend.AuthResult
		err = retry.Do(ctx, func(ctx context.Context) error {
			var rerr error
			res, rerr = a.client.Register(ctx, email, password, name)
			return rerr
		})
		if err != nil {
			printError("%s", backend.FriendlyAuthError(err, "Registration"))
			return err
		}

		printSuccess("Account created. Logged in as %s", res.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.creds.Clear(); err != nil {
			return err
		}
		printSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		user, err := a.client.Me(cmd.Context())
		if err != nil {
			return err
		}
		printUserProfile(user)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile",
	RunE:  whoamiCmd.RunE,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Update a profile field (name, persona)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		var update backend.ProfileUpdate
		switch args[0] {
		case "name":
			update.FullName = &args[1]
		case "persona":
			if !validPersona(args[1]) {
				return fmt.Errorf("unknown persona %q (valid: %s)", args[1], strings.Join(backend.Personas, ", "))
			}
			update.AgentPersona = &args[1]
		default:
			return fmt.Errorf("unknown profile field %q (valid: name, persona)", args[0])
		}

		user, err := a.client.UpdateProfile(cmd.Context(), update)
		if err != nil {
			return err
		}
		printSuccess("Profile updated")
		printUserProfile(user)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend reachability and session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		printStatus("Backend", "%s", a.cfg.Backend.BaseURL)
		printStatus("Data dir", "%s", a.cfg.Storage.DataDir)

		if cred, ok := a.creds.Get(); ok {
			var user backend.UserProfile
			if json.Unmarshal(cred.User, &user) == nil && user.Email != "" {
				printStatus("Logged in", "%s", user.Email)
			} else {
				printStatus("Logged in", "yes")
			}
		} else {
			printStatus("Logged in", "no")
		}

		res := a.wake(cmd.Context())
		if res.Reachable {
			printStatus("Latency", "%s", res.Elapsed.Round(time.Millisecond))
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			printStatus(info.Key, "%s", info.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")

	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerName, "name", "", "full name")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password (min 8 characters)")
	registerCmd.Flags().StringVar(&registerConfirm, "confirm-password", "", "repeat the password")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func validPersona(p string) bool {
	for _, known := range backend.Personas {
		if p == known {
			return true
		}
	}
	return false
}

func printUserProfile(user backend.UserProfile) {
	printStatus("Email", "%s", user.Email)
	printStatus("Name", "%s", user.FullName)
	printStatus("Persona", "%s", user.AgentPersona)
	if !user.CreatedAt.IsZero() {
		printStatus("Member since", "%s", user.CreatedAt.Format("2006-01-02"))
	}
}
