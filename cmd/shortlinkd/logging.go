package main

import (
	"log/slog"

	"github.com/shortlinkd/shortlinkd/pkg/logger"
)

func buildLogger(cfg logger.Config) *slog.Logger {
	return logger.NewLogger(cfg)
}
