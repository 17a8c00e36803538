package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"escrowd/config"
	"escrowd/core"
	"escrowd/ledger"
	"escrowd/observability/logging"
	"escrowd/rpc"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESCROWD_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Setup("escrowd", env, cfg.LogFile)

	programID, err := cfg.Program()
	if err != nil {
		logger.Error("Invalid program id", slog.Any("error", err))
		os.Exit(1)
	}
	tokenProgramID, err := cfg.TokenProgram()
	if err != nil {
		logger.Error("Invalid token program id", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := ledger.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node := core.NewNode(db, programID, tokenProgramID, logger)
	server := rpc.NewServer(node, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("escrowd starting",
		slog.String("listen", cfg.ListenAddress),
		slog.String("program", programID.String()),
		slog.String("tokenProgram", tokenProgramID.String()),
	)
	if err := server.ListenAndServe(ctx, cfg.ListenAddress); err != nil {
		logger.Error("Server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("escrowd stopped")
}
