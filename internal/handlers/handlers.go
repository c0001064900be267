package handlers

import (
	"podigest/pkg/tasks"
)

type Handlers struct {
	asynqClient      tasks.TaskEnqueuer
	audioStoragePath string
}

func New(asynqClient tasks.TaskEnqueuer, audioStoragePath string) *Handlers {
	return &Handlers{
		asynqClient:      asynqClient,
		audioStoragePath: audioStoragePath,
	}
}
