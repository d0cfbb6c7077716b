package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/stratum/pkg/api"
	"github.com/psantana5/stratum/pkg/auth"
	"github.com/psantana5/stratum/pkg/executor"
	"github.com/psantana5/stratum/pkg/logging"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/ratelimit"
	"github.com/psantana5/stratum/pkg/shutdown"
	tlsutil "github.com/psantana5/stratum/pkg/tls"
	"github.com/psantana5/stratum/pkg/tracing"
)

// Version is set at build time
var Version = "dev"

const limiterIdleTTL = 10 * time.Minute

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inspection server",
	Long: `Recover terminated tasks from the executor root and serve them over HTTP, together with
quota validation, update backfill and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (default from config or :8090)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bf, err := newBackfiller()
	if err != nil {
		return err
	}

	tlsCfg := tlsutil.ServerConfig{
		CertFile:     viper.GetString("tls.cert_file"),
		KeyFile:      viper.GetString("tls.key_file"),
		ClientCAFile: viper.GetString("tls.client_ca_file"),
	}
	var serverTLS *tls.Config
	if tlsCfg.Enabled() {
		if serverTLS, err = tlsCfg.Load(); err != nil {
			return err
		}
	}
	keys := auth.NewKeySet(viper.GetStringSlice("api.keys")...)

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "stratum",
		ServiceVersion: Version,
		OTLPEndpoint:   viper.GetString("tracing.endpoint"),
		Enabled:        viper.GetBool("tracing.enabled"),
	}, log)
	if err != nil {
		return err
	}

	m := metrics.NewCollector()
	s, err := openStore(m)
	if err != nil {
		tp.Shutdown(context.Background())
		return err
	}

	recovery, err := executor.NewRecovery(executor.RecoveryConfig{
		Root:    executorRoot(),
		Logger:  log.WithField("component", "recovery"),
		Metrics: m,
		Tracer:  tp.Tracer(),
	})
	if err != nil {
		s.Close()
		tp.Shutdown(context.Background())
		return err
	}
	if _, err := recovery.Recover(ctx); err != nil {
		// The root may appear later; /tasks/rescan picks it up
		log.WithError(err).Warn("Initial recovery failed")
	}
	recovery.DiskConsumed()

	if keys.Len() == 0 {
		log.Warn("API keys not configured, POST routes are unauthenticated")
	}

	limiter := ratelimit.NewLimiter(viper.GetFloat64("rate.rps"), viper.GetInt("rate.burst"))
	handler := api.NewHandler(api.Config{
		Recovery:   recovery,
		Store:      s,
		Backfiller: bf,
		Metrics:    m,
		Logger:     log.WithField("component", "api"),
		Limiter:    limiter,
		Tracer:     tp.Tracer(),
		Keys:       keys,
	})

	addr := viper.GetString("listen")
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         serverTLS,
	}

	mgr := shutdown.New(30*time.Second, log)
	mgr.Register("tracing", tp.Shutdown)
	mgr.Register("store", shutdown.CloseResource(s))
	mgr.Register("http", shutdown.StopHTTPServer(server))

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Prune(limiterIdleTTL); n > 0 {
					log.Debug("Pruned idle rate limiters", logging.Fields{"count": n})
				}
			}
		}
	}()

	go func() {
		log.Info("Inspection server listening", logging.Fields{"addr": addr, "root": executorRoot(), "tls": server.TLSConfig != nil})
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", logging.Fields{"error": err.Error()})
			cancel()
		}
	}()

	return mgr.Wait(ctx)
}
