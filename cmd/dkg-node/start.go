package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skde-project/dkg-node/config"
	"github.com/skde-project/dkg-node/internal/logger"
	"github.com/skde-project/dkg-node/internal/metrics"
	"github.com/skde-project/dkg-node/node"
	"github.com/skde-project/dkg-node/pkg/health"
	"github.com/skde-project/dkg-node/pkg/rpc"
)

var (
	startConfigPath string
	startRole       string
	startDataDir    string
	startLogLevel   string
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a DKG node",
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node, serving its RPC planes and session loop",
	Long: `Load the node's TOML configuration, open its data directory, and run
until interrupted: the cluster, external, and authority RPC planes are
bound to their configured addresses, and the session clock drives one
DKG session after another (spec §4.1/§4.2) until SIGINT/SIGTERM.`,
	Example: `  dkg-node node start --config-path ./data/Config.toml`,
	RunE:    runNodeStart,
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.AddCommand(nodeStartCmd)

	nodeStartCmd.Flags().StringVar(&startConfigPath, "config-path", "./Config.toml", "Path to the node's TOML configuration file")
	nodeStartCmd.Flags().StringVar(&startRole, "role", "", "Override the configured role (authority, leader, committee, solver, verifier)")
	nodeStartCmd.Flags().StringVar(&startDataDir, "data-dir", "", "Override the configured data directory")
	nodeStartCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}

func startOverlay() config.ConfigOverlay {
	overlay := config.ConfigOverlay{}
	if startRole != "" {
		overlay.Role = &startRole
	}
	if startDataDir != "" {
		overlay.DataDir = &startDataDir
	}
	if startLogLevel != "" {
		overlay.LogLevel = &startLogLevel
	}
	return overlay
}

func runNodeStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(startConfigPath, startOverlay())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(os.Stdout, logLevelFromString(cfg.Logging.Level))
	log.SetFormat(cfg.Logging.Format)

	appCfg := node.AppConfig{
		Role:                    mapRole(cfg.Role),
		ChainType:               string(cfg.ChainType),
		ExternalRPCURL:          cfg.ExternalRPCURL,
		ClusterRPCURL:           cfg.ClusterRPCURL,
		InternalRPCURL:          cfg.InternalRPCURL,
		LeaderClusterRPCURL:     cfg.LeaderClusterRPCURL,
		SolverRPCURL:            cfg.SolverRPCURL,
		AuthorityRPCURL:         cfg.AuthorityRPCURL,
		SessionDuration:         cfg.SessionDuration(),
		Threshold:               cfg.Threshold,
		RoundLookAhead:          cfg.RoundLookAhead,
		RadiusFoundationAddress: cfg.RadiusFoundationAddress,
		DataDir:                 cfg.DataDir,
	}

	app, err := node.NewApp(appCfg, log)
	if err != nil {
		log.Error("failed to initialize node", logger.Err(err))
		return err
	}
	defer app.Close()

	server := rpc.NewServer(app.Protocol(), app.Store(), app.View(), app.KeyService(), app.TrustedSetup())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var httpServers []*http.Server
	bind := func(addr string, handler http.Handler, name string) error {
		if addr == "" {
			return nil
		}
		srv := &http.Server{
			Addr:              listenAddr(addr),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("bind %s plane on %s: %w", name, srv.Addr, err)
		}
		httpServers = append(httpServers, srv)
		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Error(name+" plane stopped", logger.Err(err))
			}
		}()
		log.Info(name+" plane listening", logger.String("addr", srv.Addr))
		return nil
	}

	if err := bind(cfg.ClusterRPCURL, server.ClusterHandler(), "cluster"); err != nil {
		return err
	}
	if err := bind(cfg.ExternalRPCURL, server.ExternalHandler(), "external"); err != nil {
		return err
	}
	if err := bind(cfg.InternalRPCURL, server.AuthorityHandler(), "authority"); err != nil {
		return err
	}

	var healthSrv *health.Server
	if cfg.Health.Enabled {
		checker := health.NewChecker(app.Store(), appCfg.Role != node.RoleAuthority, func() bool { return app.TrustedSetup() != nil })
		healthSrv, err = health.StartHealthServer(cfg.Health.Listen, cfg.Health.Path, checker, log)
		if err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen != cfg.Health.Listen {
		go func() {
			if err := metrics.StartServer(listenAddr(cfg.Metrics.Listen)); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", logger.Err(err))
			}
		}()
		log.Info("metrics plane listening", logger.String("addr", cfg.Metrics.Listen))
	}

	sessionErrCh := make(chan error, 1)
	go func() {
		sessionErrCh <- app.RunSessionLoop(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
		cancel()
		<-sessionErrCh
	case err := <-sessionErrCh:
		if err != nil {
			log.Error("session loop exited with error", logger.Err(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, srv := range httpServers {
		_ = srv.Shutdown(shutdownCtx)
	}
	if healthSrv != nil {
		_ = healthSrv.Stop(shutdownCtx)
	}

	log.Info("node stopped")
	return nil
}

// listenAddr strips an optional scheme from a configured RPC URL, since
// net.Listen wants a bare host:port.
func listenAddr(addr string) string {
	if idx := strings.Index(addr, "://"); idx >= 0 {
		return addr[idx+3:]
	}
	return addr
}

func mapRole(r config.Role) node.Role {
	switch r {
	case config.RoleAuthority:
		return node.RoleAuthority
	case config.RoleLeader:
		return node.RoleLeader
	case config.RoleCommittee:
		return node.RoleCommittee
	case config.RoleSolver:
		return node.RoleSolver
	case config.RoleVerifier:
		return node.RoleVerifier
	default:
		return node.RoleVerifier
	}
}

func logLevelFromString(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
