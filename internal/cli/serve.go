package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairyhunter13/smoothie-kiosk/internal/catalog"
	"github.com/fairyhunter13/smoothie-kiosk/internal/config"
	httpapi "github.com/fairyhunter13/smoothie-kiosk/internal/http"
	"github.com/fairyhunter13/smoothie-kiosk/internal/kiosk"
	"github.com/fairyhunter13/smoothie-kiosk/internal/obs"
	"github.com/fairyhunter13/smoothie-kiosk/internal/report"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	EnvFile string

	// Ready, if set, is called with the bound listen address once the
	// server accepts connections.
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk HTTP server",
		Long: `Run the kiosk HTTP server and the fulfillment engine.

Configuration comes from the environment, optionally preloaded from an env
file. On SIGINT or SIGTERM the server stops taking orders, prepares the ones
already queued and exits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, opts.Ready)
		},
	}

	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "env file to load before reading the environment (default .env)")

	return cmd
}

func loadMenu(cfg config.Config) (catalog.Menu, error) {
	if cfg.MenuFile == "" {
		return catalog.DefaultMenu(), nil
	}
	return catalog.LoadMenu(cfg.MenuFile)
}

// Serve runs the kiosk until ctx is done, then drains the queue within
// cfg.ShutdownTimeout and stops.
func Serve(ctx context.Context, cfg config.Config, ready func(addr string)) error {
	logger := obs.InitLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("service_starting", zap.String("service", cfg.ServiceName))

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing_shutdown_error", zap.Error(err))
		}
	}()

	menu, err := loadMenu(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load menu", err)
	}
	svc, err := kiosk.New(menu, kiosk.Options{QueueCapacity: cfg.QueueCapacity, Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build kiosk", err)
	}
	svc.StartEngine(context.Background())
	defer svc.StopEngine()

	if cfg.ReportCron != "" {
		loc, err := time.LoadLocation(cfg.ReportTimezone)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid report timezone", err)
		}
		sched := report.NewScheduler(cfg.ReportCron, loc, svc, obs.Named(logger, "report"))
		if err := sched.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start report scheduler", err)
		}
		defer sched.Stop()
	}

	app := httpapi.NewApp(cfg, svc, obs.Named(logger, "http"))
	srv := &http.Server{
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", cfg.HTTPAddr), err)
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http_listen", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal", zap.Error(context.Cause(ctx)))
	case serveErr = <-errc:
		logger.Error("http_server_error", zap.Error(serveErr))
	}

	app.StartShutdown()
	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	svc.Shutdown(ctxDrain)

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		logger.Error("http_shutdown_error", zap.Error(err))
	}
	logger.Info("service_stopped")

	if serveErr != nil {
		return WrapExitError(ExitCommandError, "http server failed", serveErr)
	}
	return nil
}
