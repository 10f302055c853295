// Command gatewaybot is the process entry point: parse flags, load
// configuration, set up logging, and run the gateway until a signal asks
// it to stop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatewaybot/internal/app"
	"gatewaybot/internal/config"
	"gatewaybot/internal/logger"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix(time.Now().Format("2006-01-02 15:04:05 "))

	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := config.Load(*envPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(config.Env().LogLevel)
	logger.EnableFileRotation(config.Env().DataDir+"/log.txt", 10, 5, 28)
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New()
	if err := a.Init(ctx); err != nil {
		log.Fatalf("app init failed: %v", err)
	}
	defer a.Stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("app run failed: %v", err)
	}
	logger.Info("graceful shutdown complete")
}
