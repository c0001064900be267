package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"podigest/internal/db"
	"podigest/internal/digest"
	"podigest/internal/drafter"
	"podigest/internal/ingest"
	"podigest/internal/scorer"
	"podigest/internal/synth"
	"podigest/internal/worker"
	"podigest/pkg/tasks"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := envDefault("REDIS_ADDR", "127.0.0.1:6379")

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}

	ctx := context.Background()
	sc, err := scorer.NewGeminiScorer(ctx, geminiKey, envDefault("GEMINI_SCORE_MODEL", "gemini-2.0-flash"))
	if err != nil {
		log.Fatalf("could not create scorer: %v", err)
	}
	dr, err := drafter.NewGeminiDrafter(ctx, geminiKey, envDefault("GEMINI_DRAFT_MODEL", "gemini-2.0-flash"))
	if err != nil {
		log.Fatalf("could not create drafter: %v", err)
	}

	ttsClient := synth.NewClient(envDefault("TTS_BASE_URL", "https://api.openai.com"), os.Getenv("TTS_API_KEY"))

	storagePath := envDefault("AUDIO_STORAGE_PATH", "audio")
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		log.Fatalf("could not create audio storage path: %v", err)
	}

	composer := &digest.Composer{
		Drafter:         dr,
		GlobalThreshold: envFloat("SCORE_THRESHOLD", 0.65),
	}
	coordinator := &digest.Coordinator{
		Synth:         ttsClient,
		StoragePath:   storagePath,
		MaxChunkChars: envInt("TTS_MAX_CHUNK_CHARS", 4000),
		MaxTurnChars:  envInt("TTS_MAX_TURN_CHARS", 1000),
	}
	transcriber := &ingest.WhisperCLI{ModelPath: envDefault("WHISPER_MODEL_PATH", "models/ggml-base.en.bin")}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			// One task at a time: phases must process items sequentially so
			// tie-breaks and fragment concatenation stay deterministic.
			Concurrency: 1,
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			// Custom retry delay function for exponential backoff
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := 5 * time.Minute
				maxDelay := 24 * time.Hour

				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}

				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(client, sc, transcriber, composer, coordinator, storagePath)

	mux.HandleFunc(tasks.TypeIngestPhase, taskHandler.HandleIngestPhaseTask)
	mux.HandleFunc(tasks.TypeScorePhase, taskHandler.HandleScorePhaseTask)
	mux.HandleFunc(tasks.TypeComposePhase, taskHandler.HandleComposePhaseTask)
	mux.HandleFunc(tasks.TypeSynthesizePhase, taskHandler.HandleSynthesizePhaseTask)
	mux.HandleFunc(tasks.TypeSynthesizeDigest, taskHandler.HandleSynthesizeDigestTask)
	mux.HandleFunc(tasks.TypeRetryFailed, taskHandler.HandleRetryFailedTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid %s, using %d", key, fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("Invalid %s, using %g", key, fallback)
	}
	return fallback
}
