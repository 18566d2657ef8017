package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yacciiyao/yoo-growth-buddy/internal/config"
	"github.com/yacciiyao/yoo-growth-buddy/internal/dialogue"
	"github.com/yacciiyao/yoo-growth-buddy/internal/gateway"
	"github.com/yacciiyao/yoo-growth-buddy/internal/handler"
	"github.com/yacciiyao/yoo-growth-buddy/internal/llm"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
	"github.com/yacciiyao/yoo-growth-buddy/internal/profile"
	"github.com/yacciiyao/yoo-growth-buddy/internal/safety"
	"github.com/yacciiyao/yoo-growth-buddy/internal/speech"
	"github.com/yacciiyao/yoo-growth-buddy/internal/storage"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
	"github.com/yacciiyao/yoo-growth-buddy/internal/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		boot := observability.Logger()
		boot.Fatal().Err(err).Msg("配置加载失败")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	log := observability.ComponentLogger("main")

	// 持久层
	st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("数据库初始化失败")
	}
	defer st.Close()

	// 对象存储
	blobs, err := storage.NewS3BlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("对象存储初始化失败")
	}

	// 语音引擎
	asrClient := speech.NewAsrClient(cfg)
	ttsClient := speech.NewTtsClient(cfg)

	// 大模型
	registry := llm.BuildDefaultRegistry(ctx, cfg)
	selector := llm.NewSelector(registry, cfg)
	log.Info().Strs("providers", registry.Available()).Msg("大模型注册表就绪")

	// 核心业务
	voiceSvc := voice.NewService(
		st, blobs, asrClient, ttsClient,
		safety.NewGate(cfg.MaxInputLength, cfg.MaxOutputLength),
		dialogue.NewBuilder(cfg.MaxHistoryTurns),
		selector,
	)
	profileSvc := profile.NewService(st)

	// 设备通道
	gw := gateway.NewMqttVoiceGateway(cfg, voiceSvc, st)
	if err := gw.Start(); err != nil {
		log.Fatal().Err(err).Msg("MQTT 网关启动失败")
	}
	defer gw.Stop()

	// HTTP 服务
	router := handler.NewRouter(profileSvc, voiceSvc, st, blobs)
	if err := runServer(ctx, cfg.Port, router); err != nil {
		log.Fatal().Err(err).Msg("HTTP 服务异常退出")
	}
	log.Info().Msg("服务已退出")
}

func runServer(ctx context.Context, port string, router http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log := observability.ComponentLogger("main")
	log.Info().Str("addr", srv.Addr).Msg("HTTP 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
