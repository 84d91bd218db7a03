package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.InitConfig()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if cfg.BypassAuth {
		log.Println("警告: BYPASS_AUTH が有効です。本番環境では使用しないでください。")
	}

	// ハイスコアの保存先: DATABASE_URL があれば Postgres、なければローカルファイル
	var (
		newStore tetris.HighScoreStoreFactory
		results  database.ResultRepository
	)
	if cfg.DatabaseURL != "" {
		dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("データベースの初期化に失敗しました: %v", err)
		}
		defer dbService.Close()
		if err := dbService.EnsureSchema(); err != nil {
			log.Fatalf("%v", err)
		}

		results = database.NewResultRepository(dbService.DB)
		newStore = func(userID string) tetris.HighScoreStore {
			return database.NewResultHighScoreStore(results, userID)
		}
	} else {
		localStore := database.OpenLocalHighScoreStore(cfg.HighScoreDir)
		log.Printf("DATABASE_URL が未設定のため、ハイスコアを %s に保存します", localStore.Location())
		newStore = func(string) tetris.HighScoreStore { return localStore }
	}

	sessionManager := tetris.NewSessionManager(newStore, tetris.RealClock)

	handler := api.NewRouter(api.RouterConfig{
		Sessions:       sessionManager,
		Results:        results,
		Auth:           middleware.Auth{Secret: cfg.JWTSecret, Bypass: cfg.BypassAuth},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("サーバーの起動に失敗しました: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("サーバーのシャットダウンに失敗しました: %v", err)
	}
	sessionManager.Shutdown()
	log.Println("Server stopped")
}
