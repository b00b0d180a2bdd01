package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthsync/internal/agent"
	"healthsync/internal/checker"
	"healthsync/internal/config"
	"healthsync/internal/doctors"
	"healthsync/internal/platform/database"
	platformredis "healthsync/internal/platform/redis"
	"healthsync/internal/platform/telegram"
	"healthsync/internal/recommend"
	"healthsync/internal/report"
	"healthsync/internal/triage"
)

func newServeCommand() *cobra.Command {
	var (
		runMigrations   bool
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg, log, runMigrations, shutdownTimeout)
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", true, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "maximum time to wait for in-flight requests")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, runMigrations bool, shutdownTimeout time.Duration) error {
	// 1. Infrastructure
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if runMigrations {
		if err := database.Migrate(cfg.Database, log); err != nil {
			return err
		}
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// 2. Clients
	ai := agent.NewClient(agent.NewGeminiGenerator(cfg.AI), agent.OptionsFromConfig(cfg.AI), log.Named("agent"))
	if cfg.AI.APIKey == "" {
		log.Warn("GEMINI_API_KEY is not set, AI generation will fail until it is configured")
	}

	tgClient := telegram.NewClient(cfg.Telegram)
	if cfg.Telegram.ChatID == 0 {
		log.Warn("DOCTOR_CHAT_ID is not set, emergency alerts will not be delivered")
	}
	reportSvc := report.NewService(tgClient, cfg.Telegram.ChatID, log.Named("report"))

	keywords, err := doctors.LoadKeywords(cfg.Doctors.KeywordsFile)
	if err != nil {
		return err
	}

	// 3. Services
	store := triage.NewPostgresStore(db)
	triageSvc := triage.NewService(store, ai, reportSvc, triage.PolicyFromConfig(cfg.Triage), log.Named("triage"))

	directory := doctors.NewDirectory(db)
	discoverer := doctors.NewDiscoverer(cfg.Doctors, log.Named("doctors"))

	checkerSvc := checker.NewService(checker.Deps{
		Flows:     checker.NewRedisFlowStore(rdb, cfg.Redis.FlowTTL()),
		Sessions:  store,
		AI:        ai,
		Directory: directory,
		Articles:  recommend.NewRecommender(db),
		Keywords:  keywords,
		Alerter:   reportSvc,
	}, log.Named("checker"))

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.TimeoutSeconds > 0 {
		r.Use(middleware.Timeout(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))
	}
	r.Use(cors(cfg.Server.AllowOrigin))

	r.Get("/healthz", healthz(db))
	r.Route("/api", func(r chi.Router) {
		triage.RegisterRoutes(r, triage.NewHandler(triageSvc, reportSvc, log.Named("triage")))
		checker.RegisterRoutes(r, checker.NewHandler(checkerSvc, cfg.Redis.FlowTTL(), log.Named("checker")))
		doctors.RegisterRoutes(r, doctors.NewHandler(directory, discoverer, log.Named("doctors")))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cors(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, "+checker.TokenHeader)
			w.Header().Set("Access-Control-Expose-Headers", checker.TokenHeader)
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}
