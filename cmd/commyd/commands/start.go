package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/internal/telemetry"
	"github.com/commy-mesh/commy/pkg/api"
	"github.com/commy-mesh/commy/pkg/auth"
	"github.com/commy-mesh/commy/pkg/config"
	"github.com/commy-mesh/commy/pkg/idalloc"
	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/mesh"
	"github.com/commy-mesh/commy/pkg/mesh/rpc"
	"github.com/commy-mesh/commy/pkg/metrics"
	promMetrics "github.com/commy-mesh/commy/pkg/metrics/prometheus"
	"github.com/commy-mesh/commy/pkg/perfmon"
	"github.com/commy-mesh/commy/pkg/plugin"
	"github.com/commy-mesh/commy/pkg/sharedfile"
	"github.com/commy-mesh/commy/pkg/store"
	"github.com/commy-mesh/commy/pkg/transport/network"
	"github.com/commy-mesh/commy/pkg/transport/selector"
	"github.com/commy-mesh/commy/pkg/typeregistry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the commy mesh node",
	Long: `Start the commy mesh node: the shared-file manager, its network
transport, the mesh coordination service, and the control-plane HTTP API.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "commy",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "commy",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry(nil)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	n, err := buildNode(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build node: %w", err)
	}
	defer n.Close()

	serverDone := make(chan error, 1)
	go func() { serverDone <- n.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("commyd is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("server stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// node bundles every long-lived component buildNode constructs, so start
// and shutdown stay in one place.
type node struct {
	cfg        *config.Config
	journal    *store.AuditJournal
	mirror     *store.SQLMirror
	alloc      *idalloc.Allocator
	netServer  *network.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	apiServer  *api.Server
}

func buildNode(ctx context.Context, cfg *config.Config) (*node, error) {
	storeMetrics := promMetrics.NewStoreMetrics()
	networkMetrics := promMetrics.NewNetworkMetrics()
	perfMetrics := promMetrics.NewPerfMonMetrics()
	sharedFileMetrics := promMetrics.NewSharedFileMetrics()

	journal, err := store.OpenAuditJournal(filepath.Join(cfg.Database.JournalPath, "audit"), storeMetrics)
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}

	var mirror *store.SQLMirror
	if cfg.Database.SQLMirror.Enabled {
		mirror, err = store.OpenSQLMirror(cfg.Database.SQLMirror.DSN, cfg.Database.SQLMirror.MigrationsPath, storeMetrics)
		if err != nil {
			return nil, fmt.Errorf("open sql mirror: %w", err)
		}
	}

	if cfg.Database.Archive.Enabled {
		if _, err := store.NewArchiver(ctx, cfg.Database.Archive.Region, cfg.Database.Archive.Bucket, cfg.Database.Archive.Prefix, storeMetrics); err != nil {
			return nil, fmt.Errorf("open archiver: %w", err)
		}
	}

	alloc, err := idalloc.Open(filepath.Join(cfg.Database.JournalPath, "ids"))
	if err != nil {
		return nil, fmt.Errorf("open id allocator: %w", err)
	}

	sfStore := sharedfile.New(sharedfile.Config{BaseDirectory: cfg.Manager.BaseDirectory, Allocator: alloc})

	typeReg := typeregistry.New()
	pluginLoader := plugin.New(typeReg)
	if err := pluginLoader.ScanDirs(cfg.Manager.PluginDirs); err != nil {
		logger.Warn("plugin scan reported errors", logger.Err(err))
	}

	authenticator := buildAuthenticator(cfg)
	perfMonitor := perfmon.New(perfmon.DefaultConfig(), perfMetrics)
	meshRegistry := mesh.NewRegistry()

	tlsConfig, err := cfg.Manager.LoadMeshTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("load mesh tls config: %w", err)
	}

	pool := network.NewPool(network.PoolConfig{
		TLSConfig:      tlsConfig,
		CircuitConfig:  network.DefaultCircuitConfig(),
		HeartbeatEvery: cfg.Manager.HeartbeatTimeout,
	}, networkMetrics)
	netClient := network.NewClient(pool, network.DefaultClientConfig(), networkMetrics)

	sel := selector.New(perfMonitor, meshRegistry, meshPolicy(cfg.Manager.LBPolicy), tlsConfig != nil)

	mgr := manager.New(manager.Config{
		Store:             sfStore,
		Authenticator:     authenticator,
		PerfMonitor:       perfMonitor,
		Selector:          sel,
		NetworkClient:     netClient,
		MeshRegistry:      meshRegistry,
		Audit:             journal,
		Events:            manager.NewEventBus(),
		SharedFileMetrics: sharedFileMetrics,
	})

	netServer := network.NewServer(network.ServerConfig{TLSConfig: tlsConfig}, mgr.HandleInbound, networkMetrics)

	grpcServer := grpc.NewServer()
	rpc.RegisterCoordinatorServer(grpcServer, &rpc.CoordinatorService{Registry: meshRegistry})
	grpcLis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Manager.BindAddress, cfg.Manager.ListenPort+1))
	if err != nil {
		return nil, fmt.Errorf("listen for mesh coordination: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		Port:            cfg.API.Port,
		ReadTimeout:     cfg.API.ReadTimeout,
		WriteTimeout:    cfg.API.WriteTimeout,
		IdleTimeout:     cfg.API.IdleTimeout,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, mgr, pluginLoader, sfStore, journal, metrics.GetRegistry())

	return &node{
		cfg:        cfg,
		journal:    journal,
		mirror:     mirror,
		alloc:      alloc,
		netServer:  netServer,
		grpcServer: grpcServer,
		grpcLis:    grpcLis,
		apiServer:  apiServer,
	}, nil
}

// Serve blocks until ctx is cancelled or a component fails.
func (n *node) Serve(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		<-ctx.Done()
		_ = n.netServer.Close()
	}()
	go func() {
		addr := fmt.Sprintf("%s:%d", n.cfg.Manager.BindAddress, n.cfg.Manager.ListenPort)
		logger.Info("network transport listening", "addr", addr)
		if err := n.netServer.Serve(addr); err != nil {
			errCh <- fmt.Errorf("network server: %w", err)
		}
	}()

	go func() {
		logger.Info("mesh coordination listening", "addr", n.grpcLis.Addr().String())
		if err := n.grpcServer.Serve(n.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	go func() {
		if err := n.apiServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		n.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		n.grpcServer.GracefulStop()
		return err
	}
}

func (n *node) Close() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			logger.Error("audit journal close error", logger.Err(err))
		}
	}
	if n.mirror != nil {
		if err := n.mirror.Close(); err != nil {
			logger.Error("sql mirror close error", logger.Err(err))
		}
	}
	if n.alloc != nil {
		if err := n.alloc.Close(); err != nil {
			logger.Error("id allocator close error", logger.Err(err))
		}
	}
}

func buildAuthenticator(cfg *config.Config) *auth.Authenticator {
	secret := []byte(cfg.Manager.JWTSecret)
	keyFunc := func(t *jwt.Token) (interface{}, error) { return secret, nil }
	return auth.NewAuthenticator(auth.NewJWTProvider(keyFunc, "commy"))
}

func meshPolicy(configured string) mesh.Policy {
	switch configured {
	case "round-robin":
		return mesh.RoundRobin
	case "least-connections":
		return mesh.LeastConnections
	default:
		return mesh.PerformanceBased
	}
}
