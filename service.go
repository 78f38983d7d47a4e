package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go-mod.ewintr.nl/vidsync/storage"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code for a failed command. Anything
// else that bubbles up out of a command exits with exitFailure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) *exitError {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFailure
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// store bundles the repositories of whichever backend the environment
// selects. POSTGRES_HOST set means postgres, anything else means a local
// sqlite file.
type store struct {
	videos   storage.VideoRepository
	channels storage.ChannelRepository
	close    func() error
}

func openStore(logger *slog.Logger) (*store, error) {
	if host, ok := os.LookupEnv("POSTGRES_HOST"); ok && host != "" {
		postgres, err := storage.NewPostgres(storage.PostgresInfo{
			Host:     host,
			Port:     getParam("POSTGRES_PORT", "5432"),
			User:     getParam("POSTGRES_USER", "vidsync"),
			Password: getParam("POSTGRES_PASSWORD", "vidsync"),
			Database: getParam("POSTGRES_DB", "vidsync"),
		})
		if err != nil {
			return nil, fmt.Errorf("unable to connect to postgres: %w", err)
		}
		logger.Info("connected to postgres", slog.String("host", host))

		return &store{
			videos:   storage.NewPostgresVideoRepository(postgres),
			channels: storage.NewPostgresChannelRepository(postgres),
			close:    postgres.Close,
		}, nil
	}

	path := getParam("SQLITE_PATH", "vidsync.db")
	sqlite, err := storage.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	logger.Info("opened sqlite database", slog.String("path", path))

	return &store{
		videos:   storage.NewSQLiteVideoRepository(sqlite),
		channels: storage.NewSQLiteChannelRepository(sqlite),
		close:    sqlite.Close,
	}, nil
}

func getParam(param, def string) string {
	if val, ok := os.LookupEnv(param); ok {
		return val
	}
	return def
}
