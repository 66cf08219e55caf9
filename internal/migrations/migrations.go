// Package migrations embeds the schema used by the postgres driver.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed *.sql
var FS embed.FS

type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) { l.sugar.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.sugar.Fatalf(format, v...) }

func setup(logger *zap.Logger) error {
	goose.SetBaseFS(FS)
	if logger != nil {
		goose.SetLogger(gooseLogger{sugar: logger.Named("goose").Sugar()})
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if err := setup(logger); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Status logs the state of every migration.
func Status(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if err := setup(logger); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}
