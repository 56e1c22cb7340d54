// Platform server - runs the voice conversation loop and its WebSocket API
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"log/slog"

	"github.com/talkrally/platform/internal/audio"
	"github.com/talkrally/platform/internal/config"
	"github.com/talkrally/platform/internal/conversation"
	"github.com/talkrally/platform/internal/playback"
	"github.com/talkrally/platform/internal/server"
	"github.com/talkrally/platform/internal/session"
	"github.com/talkrally/platform/internal/speech"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "HTTP listen address (overrides HTTP_ADDR)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevels[*logLevel],
	})))

	_ = godotenv.Load(*envFile)

	cfg := config.Load()
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := config.ApplyPersonaFile(cfg); err != nil {
		slog.Error("failed to load persona file", "path", cfg.PersonaFile, "error", err)
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		slog.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	capturer, err := audio.NewCapturer(cfg.SampleRate, cfg.FramesPerBuffer, 100)
	if err != nil {
		slog.Error("failed to open capture device", "error", err)
		os.Exit(1)
	}
	defer capturer.Close()

	fallback := playback.NewSystemPlayer()
	policy, ok := playback.FixedPolicy(cfg.PlaybackPolicy)
	if !ok {
		policy = playback.ProbePolicy(fallback)
	}
	player := playback.NewManager(playback.NewSpeakerSink(), fallback, policy)

	engine := speech.NewClient(cfg)
	store := conversation.NewStore(cfg.Persona, 200)
	ctrl := session.New(cfg, capturer, engine, player, store)

	srv := server.New(ctrl, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("platform server starting", "http", cfg.HTTPAddr, "chat_model", cfg.ChatModel, "voice", cfg.Voice)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	ctrl.Stop()
	slog.Info("shutdown complete")
}
