// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/cloudgate/adapters/clock"
	"github.com/artpar/cloudgate/adapters/hasher"
	apihttp "github.com/artpar/cloudgate/adapters/http"
	"github.com/artpar/cloudgate/adapters/idgen"
	"github.com/artpar/cloudgate/adapters/memory"
	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/artpar/cloudgate/adapters/mock"
	"github.com/artpar/cloudgate/adapters/sqlite"
	tlsadapter "github.com/artpar/cloudgate/adapters/tls"
	"github.com/artpar/cloudgate/app"
	"github.com/artpar/cloudgate/config"
	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/artpar/cloudgate/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Service    *app.CloudService
	Driver     *mock.Driver
	TLS        *tlsadapter.Result

	challenge *http.Server
	holder    *config.Holder
}

// Options provides optional dependencies for application initialization.
type Options struct {
	// Holder enables hot reload of the reloadable settings.
	Holder *config.Holder

	// Registry receives the metrics instead of the default registerer.
	Registry *prometheus.Registry

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application from a loaded configuration.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := SetupLogger(out, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().Str("driver", cfg.Driver.Name).Msg("initializing cloudgate")

	a := &App{
		Logger: logger,
		Config: cfg,
		holder: opts.Holder,
	}

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	stores, err := a.initStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if err := a.initDriver(ctx, stores); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init driver: %w", err)
	}

	a.Service = app.NewCloudService(a.Driver, a.Metrics, logger)
	a.initHTTPServer(opts.Registry)
	if err := a.initTLS(); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init tls: %w", err)
	}

	if a.holder != nil {
		a.holder.SetMetrics(a.Metrics)
		a.holder.OnChange(a.applyConfig)
	}

	return a, nil
}

type storeSet struct {
	instances ports.InstanceStore
	keys      ports.KeyStore
	volumes   ports.VolumeStore
}

func (a *App) initStorage(ctx context.Context) (storeSet, error) {
	if a.Config.Storage.Driver != "sqlite" {
		a.Logger.Info().Msg("using in-memory storage")
		return storeSet{
			instances: memory.NewInstanceStore(),
			keys:      memory.NewKeyStore(),
			volumes:   memory.NewVolumeStore(),
		}, nil
	}

	dsn := a.Config.Storage.DSN
	db, err := sqlite.Open(dsn)
	if err != nil {
		return storeSet{}, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return storeSet{}, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", dsn).Msg("database initialized")

	return storeSet{
		instances: sqlite.NewInstanceStore(db),
		keys:      sqlite.NewKeyStore(db),
		volumes:   sqlite.NewVolumeStore(db),
	}, nil
}

func (a *App) initDriver(ctx context.Context, stores storeSet) error {
	machine, err := lifecycle.Builtin(a.Config.Driver.Lifecycle)
	if err != nil {
		return err
	}

	var catalog *mock.Catalog
	if a.Config.Driver.SeedFile != "" {
		catalog, err = mock.LoadCatalog(a.Config.Driver.SeedFile)
		if err != nil {
			return err
		}
		a.Logger.Info().Str("file", a.Config.Driver.SeedFile).Msg("loaded catalog")
	}

	secret, hashed := a.Config.Auth.Secret()
	var h ports.Hasher = hasher.Plain{}
	if hashed {
		h = hasher.NewBcrypt(0)
	}

	driver, err := mock.New(ctx, mock.Config{
		Catalog:   catalog,
		Lifecycle: machine,
		Instances: stores.instances,
		Keys:      stores.keys,
		Volumes:   stores.volumes,
		Accounts:  map[string][]byte{a.Config.Auth.User: []byte(secret)},
		Hasher:    h,
		IDs:       idgen.UUID{},
		Clock:     clock.Real{},
		Logger:    a.Logger,
	})
	if err != nil {
		return err
	}
	a.Driver = driver

	a.Logger.Info().
		Str("lifecycle", a.Config.Driver.Lifecycle).
		Str("user", a.Config.Auth.User).
		Bool("bcrypt", hashed).
		Msg("driver ready")
	return nil
}

func (a *App) initHTTPServer(reg *prometheus.Registry) {
	srv := a.Config.Server
	routerCfg := apihttp.RouterConfig{
		Metrics:     a.Metrics,
		MetricsPath: a.Config.Metrics.Path,
		PublicURL:   srv.PublicURL,
		Timeout:     srv.RequestTimeout,
	}
	if a.Metrics != nil && reg != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	a.HTTPServer = &http.Server{
		Addr:         srv.Addr(),
		Handler:      apihttp.NewRouter(a.Service, a.Logger, routerCfg),
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
	}
	a.Logger.Info().Str("addr", srv.Addr()).Msg("http server configured")
}

func (a *App) initTLS() error {
	tc := a.Config.Server.TLS
	if !tc.Enabled() {
		return nil
	}

	cfg := tlsadapter.Config{
		CertFile: tc.CertFile,
		KeyFile:  tc.KeyFile,
		Domains:  tc.ACMEDomains,
		Email:    tc.ACMEEmail,
		Staging:  tc.ACMEStaging,
	}
	if len(tc.ACMEDomains) > 0 {
		if a.DB != nil {
			cfg.Cache = sqlite.NewCertCache(a.DB)
		} else {
			cfg.Cache = autocert.DirCache(tc.CacheDir)
		}
	}

	res, err := tlsadapter.Setup(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.TLS = res
	a.HTTPServer.TLSConfig = res.TLSConfig

	if res.ChallengeHandler != nil {
		a.challenge = &http.Server{
			Addr:        tc.ChallengeAddr,
			Handler:     res.ChallengeHandler,
			ReadTimeout: a.Config.Server.ReadTimeout,
		}
	}
	return nil
}

// applyConfig handles a reloaded configuration. Only the log level takes
// effect without a restart.
func (a *App) applyConfig(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(level)
	a.Config.Logging.Level = cfg.Logging.Level
}

// Run starts the HTTP server and blocks until ctx is done, a signal arrives,
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Bool("tls", a.TLS != nil).
			Msg("starting http server")
		var err error
		if a.TLS != nil {
			err = a.HTTPServer.ListenAndServeTLS("", "")
		} else {
			err = a.HTTPServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	if a.challenge != nil {
		go func() {
			a.Logger.Info().Str("addr", a.challenge.Addr).Msg("starting acme challenge listener")
			if err := a.challenge.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("acme challenge listener: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}
	if a.challenge != nil {
		if err := a.challenge.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("acme challenge listener shutdown error")
		}
	}

	a.closeDB()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeDB() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
	}
}

// SetupLogger builds the process logger and sets the global level.
func SetupLogger(out io.Writer, levelStr, format string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
