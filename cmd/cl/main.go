package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cleanline/internal/api"
	"cleanline/internal/engine"
	"cleanline/internal/guard"
	"cleanline/internal/server"
	"cleanline/internal/session"
	"cleanline/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Cleanline CLI",
	Long: `Cleanline tracks room-cleaning work across buildings for cleaning companies.
- Session: log in once; the token and your profile are kept in the .cleanline
  workspace and restored on the next run.
- Guard: every surface is gated by the route table (login is guest-only,
  admin surfaces need admin roles, cleaner surfaces need the cleaner role).
- Tasks: rooms move to_clean / to_clean_urgent -> in_progress -> completed
  -> verified. Urgency is a priority hint, not a separate lifecycle.
- Cache: listings are mirrored locally so reads work from the last sync;
  the backend stays the source of truth for every transition.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CLEANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("server", "http://localhost:3000", "backend base URL")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(buildingCmd())
	rootCmd.AddCommand(roomCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(serveCmd())
}

// app bundles the wired client-side stack for one command invocation.
type app struct {
	store   store.Store
	client  *api.Client
	session *session.Store
	engine  *engine.Engine
	table   *guard.Table
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	st, err := store.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer st.Close()
	client := api.New(viper.GetString("server"))
	a := &app{
		store:   st,
		client:  client,
		session: session.New(client, st),
		engine:  engine.New(client, st),
		table:   guard.DefaultTable(),
	}
	return fn(ctx, a)
}

// requireRoute runs the navigation guard for the surface a command maps
// to. A redirect verdict becomes an error naming where the user belongs.
func (a *app) requireRoute(path string) error {
	v := guard.Decide(a.table, path, a.session)
	if v.Allow {
		return nil
	}
	if v.RedirectTo == guard.LoginPath {
		return fmt.Errorf("login required (run 'cl login')")
	}
	return fmt.Errorf("access denied for %s; allowed surface is %s", path, v.RedirectTo)
}

// taskSurface is the role-dependent path task commands are gated on.
func (a *app) taskSurface() string {
	a.session.EnsureLoaded()
	if a.session.IsCleaner() {
		return "/cleaner/tasks"
	}
	return "/admin/tasks"
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute(guard.LoginPath); err != nil {
					return err
				}
				user, err := a.session.Login(ctx, api.Credentials{Email: email, Password: password})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(user)
				}
				fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Role.Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd() *cobra.Command {
	var data api.RegisterData
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			data.Role = domainRole(role)
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.requireRoute("/register"); err != nil {
					return err
				}
				user, err := a.session.Register(ctx, data)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(user)
				}
				fmt.Printf("Registered %s (%s); run 'cl login' to sign in\n", user.Email, user.Role.Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&data.Email, "email", "", "account email")
	cmd.Flags().StringVar(&data.Password, "password", "", "account password")
	cmd.Flags().StringVar(&data.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "cleaner", "role (super_admin, admin, cleaner)")
	cmd.Flags().StringVar(&data.CompanyID, "company", "", "company id (required for admin and cleaner)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				a.session.Logout()
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				a.session.EnsureLoaded()
				if refresh {
					if err := a.session.RefreshPrincipal(ctx); err != nil {
						return fmt.Errorf("session no longer valid: %w", err)
					}
				}
				p := a.session.Principal()
				if p == nil {
					fmt.Println("Not logged in")
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("%s <%s> role=%s", p.Name, p.Email, p.Role.Label())
				if p.CompanyID != "" {
					fmt.Printf(" company=%s", p.CompanyID)
				}
				fmt.Println()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch the profile from the backend")
	return cmd
}

func routesCmd() *cobra.Command {
	routes := &cobra.Command{Use: "routes", Short: "Inspect the navigation guard"}
	routes.AddCommand(routesCheckCmd())
	return routes
}

func routesCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Evaluate the guard for a path with the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				v := guard.Decide(a.table, args[0], a.session)
				if viper.GetBool("json") {
					return printJSON(v)
				}
				if v.Allow {
					fmt.Printf("%s: allowed\n", args[0])
				} else {
					fmt.Printf("%s: redirect to %s\n", args[0], v.RedirectTo)
				}
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dev backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("CLEANLINE_JWT_SECRET")
			handler, _, err := server.New(server.Config{JWTSecret: secret, Seed: seed})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Cleanline dev API on http://%s\n", addr)
			if seed {
				fmt.Println("Seeded demo data; try root@cleanline.dev / root")
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3000", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo fixture data")
	return cmd
}

// --- helpers ---

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
