// Command server boots the trading engine's HTTP ingress: it loads
// runtime config from the environment, wires the orchestrator, mints the
// operator's bearer token, and serves the API until a shutdown signal
// arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"kiatrader/internal/api"
	"kiatrader/internal/logging"
	"kiatrader/internal/metrics"
	"kiatrader/internal/uag"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	dataDir := getenv("KIATRADER_DATA_DIR", "./data")
	logDir := getenv("KIATRADER_LOG_DIR", "./log")
	port := getenv("KIATRADER_PORT", "8080")
	bearerSecret := []byte(getenv("KIATRADER_BEARER_SECRET", "dev-only-insecure-secret"))

	logging.Configure(filepath.Join(logDir, "kiatrader.log"), true, logrus.InfoLevel)
	metrics.Init()

	service, err := uag.NewService(
		filepath.Join(dataDir, "settings.local.json"),
		filepath.Join(dataDir, "credentials.local.json"),
		filepath.Join(dataDir, "prp.db"),
	)
	if err != nil {
		logging.Errorf("server: failed to build orchestrator: %v", err)
		os.Exit(1)
	}

	token, err := api.IssueServiceToken(bearerSecret, 24*time.Hour)
	if err != nil {
		logging.Errorf("server: failed to mint bearer token: %v", err)
		os.Exit(1)
	}
	logging.Infof("server: operator bearer token (valid 24h): %s", token)

	router := api.NewRouter(service, bearerSecret)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Infof("server: listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("server: listen failed: %v", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Infof("server: received shutdown signal %s", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Errorf("server: graceful shutdown failed: %v", err)
	}

	service.Shutdown()
}
