// Command landpulse-render renders locality animations from the command line
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"landpulse/internal/platform/config"
	"landpulse/internal/platform/logger"
)

func main() {
	if _, err := config.LoadDotenv(); err != nil {
		logger.Get().Warn().Err(err).Msg("dotenv load failed")
	}
	logger.Init(logger.FromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand(config.New()).ExecuteContext(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("landpulse-render")
		stop()
		os.Exit(1)
	}
}
