package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/simpledns/internal/api"
	"github.com/haukened/simpledns/internal/dns/common/clock"
	"github.com/haukened/simpledns/internal/dns/common/log"
	"github.com/haukened/simpledns/internal/dns/config"
	"github.com/haukened/simpledns/internal/dns/domain"
	"github.com/haukened/simpledns/internal/dns/gateways/transport"
	"github.com/haukened/simpledns/internal/dns/gateways/upstream"
	"github.com/haukened/simpledns/internal/dns/gateways/wire"
	"github.com/haukened/simpledns/internal/dns/repos/hosts"
	"github.com/haukened/simpledns/internal/dns/repos/recorddb"
	"github.com/haukened/simpledns/internal/dns/repos/recordtable"
	"github.com/haukened/simpledns/internal/dns/repos/zone"
	"github.com/haukened/simpledns/internal/dns/services/resolver"
	"github.com/haukened/simpledns/internal/dns/services/stats"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "simplednsd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the DNS server
type Application struct {
	config    config.ServerConfig
	logger    log.Logger
	stats     *stats.Counters
	records   *recordtable.Table
	upstream  *upstream.Client
	handler   resolver.DNSResponder
	transport transport.ServerTransport
	status    *api.Server
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run is main without the process exit, returning the exit status.
func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet(appName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to the settings file (default: search "+config.ConfigFileName+")")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stderr, "%s %s\n", appName, version)
		return 0
	}

	cfg, cfgFile, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(stderr, "Logging configuration error: %v\n", err)
		return 1
	}
	defer log.Sync()

	log.Info(map[string]any{
		"version":       version,
		"config_file":   cfgFile,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"port":          cfg.ListeningPort,
		"outbound_port": cfg.RemoteLookupPort,
		"threads":       cfg.ThreadCount,
		"servers":       cfg.UpstreamServers,
	}, "Starting SimpleDNS server")

	if cfg.UseTCP {
		log.Warn(map[string]any{"transport": transport.TransportTCP}, "DNS over TCP is not supported, ignoring use-tcp")
	}
	if !cfg.UseUDP {
		log.Error(nil, "No supported transport enabled, set use-udp")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg.ServerConfig(), log.GetLogger())
	if err != nil {
		log.Error(map[string]any{"error": err}, "Failed to build application")
		return 1
	}

	if err := app.Run(ctx); err != nil {
		log.Error(map[string]any{"error": err}, "Server failed")
		return 1
	}

	log.Info(nil, "SimpleDNS server stopped gracefully")
	return 0
}

// buildApplication loads the record sources and wires every component.
// Nothing is bound until Start.
func buildApplication(ctx context.Context, cfg config.ServerConfig, logger log.Logger) (*Application, error) {
	counters := stats.New(clock.RealClock{})
	codec := wire.NewUDPCodec(logger)

	records, err := loadRecords(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load local records: %w", err)
	}
	table, err := recordtable.New(records)
	if err != nil {
		return nil, fmt.Errorf("failed to build record table: %w", err)
	}
	logger.Info(map[string]any{
		"records": table.Count(),
		"zones":   table.Zones(),
	}, "Record table initialized")

	upstreamClient, err := upstream.NewClient(upstream.Options{
		Servers:   cfg.Upstreams,
		LocalPort: cfg.OutboundPort,
		Timeout:   cfg.UpstreamTimeout,
		Retries:   cfg.UpstreamRetries,
		Codec:     codec,
		Logger:    logger,
		Stats:     counters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	resolverService := resolver.NewResolver(resolver.ResolverOptions{
		Records:  table,
		Upstream: upstreamClient,
		Logger:   logger,
		Stats:    counters,
	})
	handler := resolver.NewHandler(resolver.HandlerOptions{
		Resolver: resolverService,
		Logger:   logger,
		Stats:    counters,
	})

	udpTransport, err := transport.NewTransport(transport.TransportUDP, transport.UDPOptions{
		Addr:    cfg.ListenAddr,
		Workers: cfg.ThreadCount,
		Codec:   codec,
		Logger:  logger,
		Stats:   counters,
	})
	if err != nil {
		return nil, err
	}

	app := &Application{
		config:    cfg,
		logger:    logger,
		stats:     counters,
		records:   table,
		upstream:  upstreamClient,
		handler:   handler,
		transport: udpTransport,
	}
	if cfg.StatusAddr != "" {
		app.status = api.New(api.Options{
			Addr:    cfg.StatusAddr,
			Stats:   counters,
			Records: table,
			Logger:  logger,
		})
	}
	return app, nil
}

// loadRecords merges the zone directory and the record database.
func loadRecords(ctx context.Context, cfg config.ServerConfig, logger log.Logger) ([]domain.ResourceRecord, error) {
	var records []domain.ResourceRecord

	if cfg.ZoneDir != "" {
		zoneRecords, err := zone.LoadZoneDirectory(cfg.ZoneDir, cfg.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to load zone directory: %w", err)
		}
		logger.Info(map[string]any{
			"zone_dir": cfg.ZoneDir,
			"records":  len(zoneRecords),
		}, "Loaded zone files")
		records = append(records, zoneRecords...)
	}

	hostRecords, err := hosts.Load(cfg.HostsFile, cfg.DefaultTTL, logger)
	if err != nil {
		return nil, err
	}
	records = append(records, hostRecords...)

	dbRecords, err := recorddb.Load(ctx, cfg.DatabaseFile, cfg.DefaultTTL, logger)
	if err != nil {
		return nil, err
	}
	return append(records, dbRecords...), nil
}

// Start opens the upstream socket, then the listening socket, then the status
// API. Whatever was started is torn down again if a later step fails.
func (app *Application) Start(ctx context.Context) error {
	if err := app.upstream.Open(ctx); err != nil {
		return fmt.Errorf("failed to open upstream socket: %w", err)
	}

	if err := app.transport.Start(ctx, app.handler); err != nil {
		_ = app.upstream.Close()
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}

	if app.status != nil {
		if err := app.status.Start(ctx); err != nil {
			_ = app.transport.Stop()
			_ = app.upstream.Close()
			return err
		}
	}

	app.logger.Info(map[string]any{
		"address":   app.transport.Address(),
		"outbound":  app.upstream.LocalAddr().String(),
		"transport": transport.TransportUDP,
	}, "DNS server started")
	return nil
}

// Shutdown stops accepting queries, lets in-flight ones finish and closes the
// upstream socket. It logs the final counters.
func (app *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if app.status != nil {
		if err := app.status.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status API: %w", err))
		}
	}
	if err := app.transport.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}
	if err := app.upstream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("upstream: %w", err))
	}

	app.logger.Info(app.stats.Snapshot().Fields(), "Final query statistics")
	return errors.Join(errs...)
}

// Run starts the server and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	app.logger.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(map[string]any{"error": err}, "Error during shutdown")
		return err
	}
	app.logger.Info(nil, "Graceful shutdown completed")
	return nil
}
