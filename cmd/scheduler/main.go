package main

import (
	"log"
	"os"

	"podigest/internal/db"
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

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddr},
		&asynq.SchedulerOpts{},
	)

	register := func(spec string, task *asynq.Task, taskErr error) {
		if taskErr != nil {
			log.Fatalf("could not create task: %v", taskErr)
		}
		if _, err := scheduler.Register(spec, task); err != nil {
			log.Fatalf("could not register task %s: %v", task.Type(), err)
		}
	}

	batch := 50
	ingestTask, err1 := tasks.NewIngestPhaseTask(batch)
	register("@every 30m", ingestTask, err1)

	scoreTask, err2 := tasks.NewScorePhaseTask(batch)
	register("@every 1h", scoreTask, err2)

	composeTask, err3 := tasks.NewComposePhaseTask(batch)
	register("@every 6h", composeTask, err3)

	synthTask, err4 := tasks.NewSynthesizePhaseTask(batch)
	register("@every 1h", synthTask, err4)

	retryTask, err5 := tasks.NewRetryFailedTask(batch)
	register("@every 24h", retryTask, err5)

	log.Printf("Scheduler starting (commit: %s)", CommitSHA)
	if err := scheduler.Run(); err != nil {
		log.Fatalf("could not run scheduler: %v", err)
	}
}
