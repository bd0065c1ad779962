package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/app"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/config"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/handler"
	"github.com/k-negishi/calendar-kpi-aggregator/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}

	logger := logging.New(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("タイムゾーンの読み込みに失敗しました")
	}

	components, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初期化に失敗しました")
	}
	defer components.Close()

	srv := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	handler.NewKPIHandler(components.CalendarKPI, components.ParticipantKPI, loc, logger).Register(srv)

	go func() {
		if err := srv.Listen(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("HTTPサーバーが停止しました")
		}
	}()
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTPサーバーを起動しました")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("シャットダウンしています")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTPサーバーのシャットダウンに失敗しました")
	}
}
