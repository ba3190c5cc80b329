package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"tasktrail/internal/app"
	"tasktrail/internal/config"
	"tasktrail/internal/domain"
	"tasktrail/internal/engine"
	"tasktrail/internal/logging"
	"tasktrail/internal/server"
	"tasktrail/internal/store"
)

var envReplacer = strings.NewReplacer("-", "_")

// operator is the identity CLI reads run under.
var operator = domain.Identity{ID: "cli", Role: domain.RoleAdmin}

var rootCmd = &cobra.Command{
	Use:   "tt",
	Short: "TaskTrail CLI",
	Long: `TaskTrail tracks projects and tasks for a team with an audit trail of every change.
- Admins create projects and tasks, assign members, and see the whole activity log.
- Members see the projects they belong to and the tasks assigned to them, and may only move task status.
- Every mutation is recorded as an activity log entry with a field-level diff for updates.
Configuration lives in tasktrail.yml in the workspace; TASKTRAIL_* env vars and flags override it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadDotEnv(viper.GetString("workspace"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKTRAIL")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory holding tasktrail.yml and .tasktrail/")
	flags.Bool("json", false, "output JSON")
	flags.String("driver", "", "store driver: sqlite, mongo or memory")
	flags.String("mongo-uri", "", "MongoDB connection string")
	flags.String("mongo-database", "", "MongoDB database name")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "console or json")
	for _, name := range []string{"workspace", "json", "driver", "mongo-uri", "mongo-database", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(dashboardCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := cfg.RequireSecret(); err != nil {
				return err
			}
			return withEngine(cmd.Context(), cfg, logger, func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: cfg.Server.BasePath, Logger: logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving TaskTrail API",
					zap.String("addr", cfg.Server.Addr),
					zap.String("base_path", cfg.Server.BasePath),
					zap.String("driver", cfg.Store.Driver),
				)
				fmt.Printf("Serving TaskTrail API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
					cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("base-path", "", "API base path")
	cmd.Flags().String("jwt-secret", "", "HS256 signing secret")
	cmd.Flags().String("token-ttl", "", "token lifetime, e.g. 24h")
	for _, name := range []string{"addr", "base-path", "jwt-secret", "token-ttl"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			s, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Printf("%s store is up to date\n", cfg.Store.Driver)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage tasktrail.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default tasktrail.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config (secret redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(viper.GetViper())
			if err != nil {
				return err
			}
			shown := redactConfig(*cfg)
			if viper.GetBool("json") {
				return printJSON(shown)
			}
			out, err := yaml.Marshal(shown)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := resolveConfig(viper.GetViper())
			if viper.GetBool("json") {
				return printJSON(validationResult(err))
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}
	cmd.AddCommand(userAddCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var name, email, password, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account (use --role Admin to bootstrap an administrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return withEngine(cmd.Context(), cfg, logger, func(ctx context.Context, e engine.Engine) error {
				u, err := e.AddUser(ctx, engine.NewUser{Name: name, Email: email, Password: password, Role: r})
				if err != nil {
					return err
				}
				return printUsers([]domain.UserSummary{u.Summary()})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "Admin or Member")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return withEngine(cmd.Context(), cfg, logger, func(ctx context.Context, e engine.Engine) error {
				users, err := e.ListUsers(ctx, operator)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the activity log",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent activity entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return withEngine(cmd.Context(), cfg, logger, func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ListActivity(ctx, operator, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Actor", "Action", "Target", "Details"})
				for _, en := range entries {
					actor := en.User
					if en.Actor != nil && en.Actor.Name != "" {
						actor = en.Actor.Name
					}
					tw.AppendRow(table.Row{
						en.Timestamp.Format(time.RFC3339),
						actor,
						en.Action,
						fmt.Sprintf("%s %s", en.TargetType, en.TargetID),
						formatDetails(en.Details),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 20, "number of entries")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show project and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return withEngine(cmd.Context(), cfg, logger, func(ctx context.Context, e engine.Engine) error {
				sum, err := e.Dashboard(ctx, operator)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Group", "Key", "Count"})
				tw.AppendRow(table.Row{"projects", "total", sum.TotalProjects})
				appendGroups(tw, "projects by status", sum.ProjectsByStatus)
				tw.AppendSeparator()
				tw.AppendRow(table.Row{"tasks", "total", sum.TotalTasks})
				appendGroups(tw, "tasks by status", sum.TasksByStatus)
				appendGroups(tw, "tasks by priority", sum.TasksByPriority)
				tw.Render()
				return nil
			})
		},
	}
}

// --- helpers ---

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := resolveConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func withEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, fn func(context.Context, engine.Engine) error) error {
	s, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(s, logger)
	e, err := app.NewEngine(cfg, s, logger)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func closeStore(s store.Store, logger *zap.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn("close store", zap.Error(err))
	}
}

func printUsers(users []domain.UserSummary) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role})
	}
	tw.Render()
	return nil
}

func appendGroups(tw table.Writer, label string, groups []domain.GroupCount) {
	for _, g := range groups {
		tw.AppendRow(table.Row{label, g.Key, g.Count})
	}
}

// formatDetails renders details as compact JSON with sorted keys.
func formatDetails(d domain.Details) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		b, err := json.Marshal(d[k])
		if err != nil {
			b = []byte(fmt.Sprint(d[k]))
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, b))
	}
	return strings.Join(parts, " ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
