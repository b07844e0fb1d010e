package main

import (
	"fmt"
	"log/slog"
	"os"
)

// workerLogger routes asynq's internal logs through slog.
type workerLogger struct{}

func (workerLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (workerLogger) Info(args ...any) { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (workerLogger) Warn(args ...any) { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (workerLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }

func (workerLogger) Fatal(args ...any) {
	slog.Error(fmt.Sprint(args...), "component", "asynq")
	os.Exit(1)
}
