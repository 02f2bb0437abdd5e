package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruxplay/mesa-engine/internal/balance"
	"github.com/ruxplay/mesa-engine/internal/config"
	place_bet "github.com/ruxplay/mesa-engine/internal/http-server/handlers/mesa/bet"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mesa/history"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mesa/snapshot"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mesa/spin"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mesa/sse"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mysql"
	mwlogger "github.com/ruxplay/mesa-engine/internal/http-server/middleware/logger"
	"github.com/ruxplay/mesa-engine/internal/job"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/handler/slogpretty"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"github.com/ruxplay/mesa-engine/internal/provably"
	"github.com/ruxplay/mesa-engine/internal/repository"
	"github.com/ruxplay/mesa-engine/internal/stream"
	wshandler "github.com/ruxplay/mesa-engine/internal/ws/handler"
	"golang.org/x/exp/slog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting mesa engine...", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := sql.Open("mysql", cfg.Storage.DSN)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err = db.Ping(); err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	handler := mysql.New(db)

	queue := job.NewQueue(256)
	job.NewWorkerPool(4, queue).Start()

	mesaRepo := repository.NewMesaRepository(*handler)
	betRepo := repository.NewBetRepository(*handler)
	drawRepo := repository.NewDrawRepository(*handler)
	archive := repository.NewArchive(log, queue, mesaRepo, betRepo, drawRepo)

	balanceSvc := balance.NewMySQLService(*handler)
	settler := mesa.NewSettler(log, balanceSvc, queue)
	fair := provably.New()

	var sinks []stream.Sink
	if cfg.Pusher.Enabled {
		sinks = append(sinks, stream.NewPusherSink(cfg.Pusher, log))

		log.Info("pusher sink enabled", slog.String("cluster", cfg.Pusher.Cluster))
	}

	engine := mesa.NewEngine()

	for _, typ := range cfg.Mesas {
		bc := stream.NewBroadcaster(typ.ID, log, sinks...)
		table := mesa.NewTable(typ, log, balanceSvc, bc)

		internal := mesa.NewInternalSource(fair)

		var (
			source   mesa.DrawSource = internal
			external *mesa.ExternalSource
		)

		if typ.DrawSource == config.DrawExternal {
			external = mesa.NewExternalSource(internal, log)
			source = external
		}

		scheduler := mesa.NewScheduler(typ, log, table, source, settler, archive)

		engine.Register(table, scheduler, external)

		log.Info("mesa type registered",
			slog.String("mesa_type", typ.ID),
			slog.Int("sectors", typ.SectorCount),
			slog.String("draw_source", string(typ.DrawSource)))
	}

	engine.Start(context.Background())

	betHandler := place_bet.NewBet(log, engine)
	snapshotHandler := snapshot.NewSnapshot(log, engine)
	historyHandler := history.NewHistory(log, drawRepo)
	spinHandler := spin.NewResult(log, engine, cfg.SpinSourceToken)
	streamHandler := sse.NewStream(log, engine)
	hub := wshandler.NewHub(log, engine)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/mesa/{type}/bets", betHandler.New())
	router.Get("/mesa/{type}", snapshotHandler.New())
	router.Get("/mesa/{type}/history", historyHandler.New())
	router.Post("/mesa/{type}/spin-result", spinHandler.New())
	router.Get("/mesa/{type}/stream", streamHandler.New())
	router.Get("/ws", hub.HandleConnection)

	log.Info("Server started", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:        cfg.HTTPServer.Address,
		Handler:     router,
		ReadTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout: cfg.HTTPServer.IdleTimeout,
	}

	if err = srv.ListenAndServe(); err != nil {
		log.Error("Server failed", sl.Err(err))
	}

	log.Error("Server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
