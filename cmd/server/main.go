package main

import (
	"log"
	"net/http"
	"os"

	"podigest/internal/db"
	"podigest/internal/handlers"
	"podigest/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	storagePath := os.Getenv("AUDIO_STORAGE_PATH")
	if storagePath == "" {
		storagePath = "audio"
	}

	h := handlers.New(client, storagePath)
	rl := middleware.NewRateLimiterMiddleware(rate.Limit(1), 5)

	r := mux.NewRouter()
	r.HandleFunc("/rss/{uuid}", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/audio/{filename}", h.ServeAudioFile).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware, rl.Middleware)
	api.HandleFunc("/topics", h.ListTopics).Methods(http.MethodGet)
	api.HandleFunc("/topics", h.CreateTopic).Methods(http.MethodPost)
	api.HandleFunc("/topics/{id}", h.UpdateTopic).Methods(http.MethodPut)
	api.HandleFunc("/topics/{id}", h.DeleteTopic).Methods(http.MethodDelete)
	api.HandleFunc("/digests/{id}/synthesize", h.RegenerateDigest).Methods(http.MethodPost)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on :%s (commit: %s)", port, CommitSHA)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
