// OpenFleet — VPS fleet monitoring & access-scoped health aggregation.
// Author: vesaa | License: MIT | https://github.com/vesaa/openfleet
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/vesaa/openfleet/internal/agentsim"
	"github.com/vesaa/openfleet/internal/config"
	"github.com/vesaa/openfleet/internal/fleet"
	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/server"
	"github.com/vesaa/openfleet/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const asciiLogo = `
  ██████╗ ██████╗ ███████╗███╗   ██╗███████╗██╗     ███████╗███████╗████████╗
 ██╔═══██╗██╔══██╗██╔════╝████╗  ██║██╔════╝██║     ██╔════╝██╔════╝╚══██╔══╝
 ██║   ██║██████╔╝█████╗  ██╔██╗ ██║█████╗  ██║     █████╗  █████╗     ██║
 ██║   ██║██╔═══╝ ██╔══╝  ██║╚██╗██║██╔══╝  ██║     ██╔══╝  ██╔══╝     ██║
 ╚██████╔╝██║     ███████╗██║ ╚████║██║     ███████╗███████╗███████╗   ██║
  ╚═════╝ ╚═╝     ╚══════╝╚═╝  ╚═══╝╚═╝     ╚══════╝╚══════╝╚══════╝   ╚═╝
`

const version = "v0.1.0"

func printBanner(mode string) {
	fmt.Print(asciiLogo)
	fmt.Printf("  ► OpenFleet %s  |  Author: vesaa  |  Mode: %s\n\n", version, mode)
}

func main() {
	root := &cobra.Command{
		Use:   "openfleet",
		Short: "OpenFleet — VPS fleet monitoring & access-scoped health aggregation",
		Long: `OpenFleet is a single-binary panel for monitoring a fleet of VPS hosts.
It polls the per-host agent for health and speed-test readings, derives
server statuses, and scopes every operation to per-user access grants.`,
		SilenceUsage: true,
	}

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the OpenFleet panel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SERVER")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := config.NewLogger(cfg)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}

			resolver := fleet.NewResolver(st, logger)
			prober := fleet.NewProber(cfg.AgentPort, cfg.HealthProbeTimeout(), cfg.SpeedTestProbeTimeout(), logger)
			orch := fleet.NewOrchestrator(st, resolver, prober, cfg.FleetWorkers, logger)
			pinger := fleet.NewPinger(cfg.PingCount, time.Duration(cfg.PingTimeout)*time.Second)

			// Optional unattended fleet health runs.
			var sched *fleet.Scheduler
			if cfg.CheckSchedule != "" {
				sched = fleet.NewScheduler(orch, cfg.CheckSchedule, logger)
				if err := sched.Start(); err != nil {
					return fmt.Errorf("starting scheduler: %w", err)
				}
				defer sched.Stop()
			}

			gin.SetMode(gin.ReleaseMode)
			corsMiddleware := func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				if c.Request.Method == "OPTIONS" {
					c.AbortWithStatus(204)
					return
				}
				c.Next()
			}

			engine := gin.New()
			engine.Use(gin.Recovery(), corsMiddleware)
			api := server.New(cfg, st, orch, resolver, pinger, logger)
			api.RegisterRoutes(engine)

			addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
			fmt.Printf("  ✓ Panel API  → http://%s/api\n", addr)
			fmt.Printf("  ✓ Metrics    → http://%s/metrics\n", addr)
			if cfg.CheckSchedule != "" {
				fmt.Printf("  ✓ Scheduled fleet checks: %q\n", cfg.CheckSchedule)
			}
			fmt.Println()

			srv := &http.Server{Addr: addr, Handler: engine}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)

			select {
			case err := <-errCh:
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
				logger.Info("server stopped")
				return nil
			}
		},
	}

	// ── seed subcommand ───────────────────────────────────────────────────────
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin account (and optional demo servers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("SEED")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			demo, _ := cmd.Flags().GetBool("demo")

			hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
			if err != nil {
				return err
			}

			ctx := context.Background()
			admin := &models.User{
				Name:           name,
				Email:          email,
				HashedPassword: string(hash),
				Role:           models.RoleAdmin,
			}
			created, err := st.UpsertUserByEmail(ctx, admin)
			if err != nil {
				return fmt.Errorf("seeding admin: %w", err)
			}
			if created {
				fmt.Printf("  ✓ Admin created: %s\n", email)
			} else {
				fmt.Printf("  ✓ Admin already exists: %s (left unchanged)\n", email)
			}

			if demo {
				demoServers := []models.Server{
					{Name: "demo-fra-1", IP: "127.0.0.1", Country: "DE"},
					{Name: "demo-sgp-1", IP: "127.0.0.1", Country: "SG"},
				}
				for i := range demoServers {
					created, err := st.UpsertServerByName(ctx, &demoServers[i])
					if err != nil {
						return fmt.Errorf("seeding demo server: %w", err)
					}
					if created {
						fmt.Printf("  ✓ Demo server created: %s\n", demoServers[i].Name)
					} else {
						fmt.Printf("  ✓ Demo server already exists: %s (left unchanged)\n", demoServers[i].Name)
					}
				}
				fmt.Println("  → Run `openfleet agentsim` so the demo servers answer probes.")
			}
			return nil
		},
	}
	seedCmd.Flags().String("email", "admin@openfleet.local", "Admin email")
	seedCmd.Flags().String("password", "changeme-now", "Admin password")
	seedCmd.Flags().String("name", "Administrator", "Admin display name")
	seedCmd.Flags().Bool("demo", false, "Also create demo servers pointing at 127.0.0.1")

	// ── agentsim subcommand ───────────────────────────────────────────────────
	agentsimCmd := &cobra.Command{
		Use:   "agentsim",
		Short: "Serve a simulated VPS agent from local system readings (dev tool)",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner("AGENT SIMULATOR")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := config.NewLogger(cfg)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			fmt.Printf("  ✓ Agent contract → http://%s:%d/api/vps-health\n\n", cfg.SimListenHost, cfg.AgentPort)

			gin.SetMode(gin.ReleaseMode)
			sim := agentsim.New(cfg.SimDegradedAt, logger)
			return sim.Run(cfg.SimListenHost, cfg.AgentPort)
		},
	}

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print OpenFleet version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("OpenFleet %s  |  Author: vesaa\n", version)
		},
	}

	root.AddCommand(serverCmd, seedCmd, agentsimCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
