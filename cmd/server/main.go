package main

import (
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"memorialwall/internal/config"
	"memorialwall/internal/database"
	"memorialwall/internal/handler"
	"memorialwall/internal/logging"
)

func main() {
	// .envファイルを読み込み
	envErr := godotenv.Load()

	// 環境変数を読み込み
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, false)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if envErr != nil {
		log.Warnf("⚠️  .env file not found, using default values: %v", envErr)
	}

	// データベース接続を初期化
	db, err := database.Init(cfg, log)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer db.Close()

	// ハンドラー初期化
	h := handler.New(db, cfg, log)

	// WebSocket ブロードキャスターを開始
	go h.HandleBroadcast()

	router := h.SetupRouter()

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	httpHandler := c.Handler(router)

	fmt.Println("========================================")
	fmt.Println("  Memorial Wall API Server")
	fmt.Println("========================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Server: http://localhost:%s\n", cfg.ServerPort)
	fmt.Printf("  WebSocket: ws://localhost:%s/ws?scope=%s\n", cfg.ServerPort, cfg.Scope)
	if cfg.DBName != "" {
		fmt.Printf("  Database: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	fmt.Printf("  Allowed Origins: %v\n", cfg.AllowedOrigins)
	fmt.Printf("  Rate Limit: %.1f req/s (burst %d)\n", cfg.RateLimitRPS, cfg.RateLimitBurst)
	fmt.Println("========================================")
	log.Info("🚀 Server started successfully")
	log.Fatal(http.ListenAndServe(":"+cfg.ServerPort, httpHandler))
}
