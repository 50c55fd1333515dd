package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/multision/SupaConsole/pkg/api/client"
	"github.com/multision/SupaConsole/pkg/envset"
	"github.com/multision/SupaConsole/pkg/jwt"
)

var buildVersion = "dev"

const requestTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supaconsole",
		Short:         "Manage local Supabase instances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api", "", "API base URL (default from config or "+defaultAPIBase+")")
	root.AddCommand(
		newKeysCmd(),
		newDeriveCmd(),
		newLoginCmd(),
		newSignupCmd(),
		newProjectsCmd(),
		newEnvCmd(),
		newSystemCmd(),
		newVersionCmd(),
	)
	return root
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Mint anon and service role keys for a JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := cmd.Flags().GetString("secret")
			if err != nil {
				return err
			}
			if strings.TrimSpace(secret) == "" {
				secret, err = promptSecret(cmd.ErrOrStderr(), "JWT secret: ")
				if err != nil {
					return err
				}
			}
			pair, err := jwt.IssueKeyPair(secret)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s=%s\n", envset.AnonKey, pair.AnonKey)
			fmt.Fprintf(out, "%s=%s\n", envset.ServiceRoleKey, pair.ServiceKey)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "JWT secret (prompts when omitted)")
	return cmd
}

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the derived default .env for a timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := cmd.Flags().GetInt64("timestamp")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("timestamp") {
				ts = time.Now().UnixMilli()
			}
			return envset.Render(cmd.OutOrStdout(), envset.Derive(ts))
		},
	}
	cmd.Flags().Int64("timestamp", 0, "Unix time in milliseconds (default now)")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error) {
				return c.Login(ctx, email, password)
			})
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error) {
				return c.Signup(ctx, email, password)
			})
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("password", "", "Password (supply to avoid prompt)")
	_ = cmd.MarkFlagRequired("email")
}

type authFunc func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error)

func authenticate(cmd *cobra.Command, fn authFunc) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if strings.TrimSpace(password) == "" {
		var err error
		password, err = promptSecret(cmd.ErrOrStderr(), "Password: ")
		if err != nil {
			return err
		}
	}
	cfg, c, err := clientFor(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	resp, err := fn(ctx, c, email, password)
	if err != nil {
		return err
	}
	cfg.SessionToken = resp.Session.Token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", resp.User.Email)
	return nil
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				projects, err := c.ListProjects(ctx, token)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range projects {
					fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Status, p.Name)
				}
				return nil
			})
		},
	}
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				p, err := c.CreateProject(ctx, token, args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}
	create.Flags().String("description", "", "Project description")
	initialize := &cobra.Command{
		Use:   "init PROJECT_ID",
		Short: "Copy the compose files into the project workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				p, err := c.InitializeProject(ctx, token, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p.ID, p.Status)
				return nil
			})
		},
	}
	remove := &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project and its workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				return c.DeleteProject(ctx, token, args[0])
			})
		},
	}
	cmd.AddCommand(list, create, initialize, remove)
	return cmd
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Read and change project configuration",
	}
	get := &cobra.Command{
		Use:   "get PROJECT_ID",
		Short: "Print the stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				env, err := c.GetEnv(ctx, token, args[0])
				if err != nil {
					return err
				}
				return printEnv(cmd.OutOrStdout(), env, asJSON)
			})
		},
	}
	get.Flags().Bool("json", false, "Print JSON instead of dotenv")
	set := &cobra.Command{
		Use:   "set PROJECT_ID KEY=VALUE...",
		Short: "Merge values into the stored configuration",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				if _, err := c.UpdateEnv(ctx, token, args[0], update); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %d variable(s)\n", len(update))
				return nil
			})
		},
	}
	regenerate := &cobra.Command{
		Use:   "regenerate PROJECT_ID",
		Short: "Replace every secret and port with fresh values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				env, err := c.RegenerateEnv(ctx, token, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "regenerated secrets; studio on %s\n", env[envset.SiteURL])
				return nil
			})
		},
	}
	file := &cobra.Command{
		Use:   "file PROJECT_ID",
		Short: "Download the rendered .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				data, err := c.EnvFile(ctx, token, args[0])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(output, data, 0o600)
			})
		},
	}
	file.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	cmd.AddCommand(get, set, regenerate, file)
	return cmd
}

func newSystemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Check docker and network prerequisites on the API host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *apiclient.Client, token string) error {
				report, err := c.SystemCheck(ctx, token)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "docker:             %t\n", report.Docker)
				fmt.Fprintf(out, "docker compose:     %t\n", report.DockerCompose)
				fmt.Fprintf(out, "docker running:     %t\n", report.DockerRunning)
				fmt.Fprintf(out, "internet:           %t\n", report.InternetConnection)
				for name, msg := range report.Errors {
					fmt.Fprintf(out, "  %s: %s\n", name, msg)
				}
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(buildVersion))
		},
	}
}

func clientFor(cmd *cobra.Command) (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if api, _ := cmd.Flags().GetString("api"); strings.TrimSpace(api) != "" {
		cfg.APIBaseURL = api
	}
	c, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, c, nil
}

func withSession(cmd *cobra.Command, fn func(ctx context.Context, c *apiclient.Client, token string) error) error {
	cfg, c, err := clientFor(cmd)
	if err != nil {
		return err
	}
	if cfg.SessionToken == "" {
		return errors.New("not logged in; run `supaconsole login` first")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return fn(ctx, c, cfg.SessionToken)
}

func promptSecret(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(data), nil
}

// parseAssignments turns KEY=VALUE arguments into an update. Values may
// contain '='.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || !envset.ValidKey(key) {
			return nil, fmt.Errorf("invalid assignment %q, expected KEY=VALUE", arg)
		}
		out[key] = value
	}
	return out, nil
}

func printEnv(w io.Writer, env map[string]string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	return envset.Render(w, envset.Set(env))
}
