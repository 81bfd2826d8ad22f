package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/gamebot/broadcast"
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/jobs"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/room"
	"github.com/wfunc/gamebot/scheduler"
	"github.com/wfunc/gamebot/server"
	"github.com/wfunc/gamebot/services"
	"github.com/wfunc/gamebot/session"
	"github.com/wfunc/gamebot/store"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewDatabase(cfg.Database.Postgres)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Shared in-memory store backs sessions, timers and balance cache
	st := store.NewMemoryStore()
	sessions := session.NewManager(st, cfg.Game.SessionTTL)
	sched := scheduler.New(st, cfg.Game.ScanInterval)

	merchant := services.NewMerchantService(db, cfg.Game.Commission)
	credit := services.NewCreditService(db, merchant, st)

	rooms := room.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(rooms)

	engine := game.NewEngine(cfg.Game, sessions, sched, credit, merchant, db, broadcaster)
	engine.Register(game.NewDiceResolver())
	engine.Register(game.NewLowCardResolver())
	engine.Register(game.NewFlagResolver())
	engine.Start()

	sweep := jobs.NewCommissionSweep(merchant, cfg.Game.Commission)
	sweep.Start()

	monitor.Serve(cfg.Server.MetricsAddress)

	gameServer := server.NewGameServer(cfg, db, engine, rooms, broadcaster, sweep)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down...")
		gameServer.Shutdown()
		sweep.Stop()
		engine.Stop()
		st.Close()
		db.Close()
		os.Exit(0)
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
