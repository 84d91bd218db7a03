package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

// RouterConfig はルーターの組み立てに必要な依存です。
type RouterConfig struct {
	Sessions       *tetris.SessionManager
	Results        database.ResultRepository // nil ならランキングAPIは登録しない
	Auth           middleware.Auth
	AllowedOrigins []string
}

// NewRouter はAPIのルーティングを組み立て、CORSを適用したハンドラーを返します。
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public", handlers.PublicHandlerFunc).Methods(http.MethodGet)

	gameHandler := handlers.NewGameHandler(cfg.Sessions, cfg.Auth, cfg.AllowedOrigins)

	// 認証はWebSocketの最初のメッセージで行うため、ミドルウェアは通さない
	r.HandleFunc("/ws/games/{sessionID}", gameHandler.HandleWebSocketConnection).Methods(http.MethodGet)

	games := r.PathPrefix("/api/games").Subrouter()
	games.Use(cfg.Auth.Middleware)
	games.HandleFunc("", gameHandler.CreateGame).Methods(http.MethodPost)
	games.HandleFunc("/{sessionID}", gameHandler.GetGame).Methods(http.MethodGet)
	games.HandleFunc("/{sessionID}", gameHandler.EndGame).Methods(http.MethodDelete)
	games.HandleFunc("/{sessionID}/actions", gameHandler.ApplyAction).Methods(http.MethodPost)

	if cfg.Results != nil {
		resultHandler := handlers.NewResultHandler(cfg.Results)
		r.HandleFunc("/api/results", resultHandler.GetTopResults).Methods(http.MethodGet)
		r.HandleFunc("/api/results/user/{userID}", resultHandler.GetUserResult).Methods(http.MethodGet)
	}

	return middleware.CORSHandler(cfg.AllowedOrigins)(r)
}
