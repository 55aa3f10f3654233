package main

import (
	"os"
	"os/signal"
	"syscall"

	"tickflow/config"
	"tickflow/internal/collector"
	"tickflow/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// run the streaming engine
	engine, err := collector.Start(cfg, log)
	if err != nil {
		log.Fatal("engine failed to start", zap.Error(err))
	}

	// stop on SIGINT/SIGTERM so the final flush can run
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	engine.Stop()
}
