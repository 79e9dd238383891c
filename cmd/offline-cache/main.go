package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	offlinecache "github.com/offline-cache/offline-cache"
	"github.com/offline-cache/offline-cache/cache"
)

var (
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin to front (overrides config)")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&providerFlag, "provider", "", "Cache provider to use: sqlite or memory (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	config, err := getConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read config")
	}
	if originFlag != "" {
		config.Origin = originFlag
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if providerFlag != "" {
		config.Provider = providerFlag
	}

	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid origin")
	}

	var provider cache.CacheProvider
	switch config.Provider {
	case "sqlite":
		provider = cache.NewSQLiteCache(config.DBFile)
	case "memory":
		provider = cache.NewMemCache()
	default:
		log.Fatal().Msgf("Unsupported cache provider: %s", config.Provider)
	}

	worker := offlinecache.CreateWorker(offlinecache.Config{
		Cache:          provider,
		OriginURL:      *originURL,
		OriginHost:     config.Host,
		StaticVersion:  config.Versions.Static,
		DynamicVersion: config.Versions.Dynamic,
		Manifest:       config.Manifest,
		OfflinePath:    config.Offline,
		Rules: offlinecache.RulesFor(
			config.Rules.NetworkFirst,
			config.Rules.StaleWhileRevalidate,
		),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a failed install exits non-zero and leaves any previously activated
	// deployment serving
	if err := worker.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}
	if err := worker.Activate(); err != nil {
		log.Fatal().Err(err).Msg("Activate failed")
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(worker.State().String()))
	})
	r.Post("/_worker/sync/{tag}", func(w http.ResponseWriter, r *http.Request) {
		if err := worker.HandleSync(r.Context(), chi.URLParam(r, "tag")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/_worker/push", func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		worker.HandlePush(r.Context(), payload)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/*", worker)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: r,
	}
	go func() {
		log.Info().Int("port", config.Port).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}
	if err := worker.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Worker shutdown")
	}
}
