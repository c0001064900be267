package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"podigest/internal/db"
	"podigest/internal/models"
	"podigest/pkg/tasks"
)

func (h *Handlers) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := db.GetAllTopics()
	if err != nil {
		log.Printf("Error listing topics: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (h *Handlers) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var topic models.Topic
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		http.Error(w, "Invalid topic payload", http.StatusBadRequest)
		return
	}
	if topic.Slug == "" || topic.DisplayName == "" {
		http.Error(w, "Topic slug and display name are required", http.StatusBadRequest)
		return
	}
	if topic.MinEpisodes < 1 || (topic.MaxEpisodes > 0 && topic.MaxEpisodes < topic.MinEpisodes) {
		http.Error(w, "Invalid episode bounds", http.StatusBadRequest)
		return
	}
	wantVoices := 1
	if topic.Dialogue {
		wantVoices = 2
	}
	if len(topic.Voices) != wantVoices {
		http.Error(w, "Voice configuration does not match synthesis mode", http.StatusBadRequest)
		return
	}

	created, err := db.CreateTopic(topic)
	if err != nil {
		http.Error(w, "Failed to create topic", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid topic ID", http.StatusBadRequest)
		return
	}

	topic, err := db.GetTopicByID(id)
	if err != nil {
		http.Error(w, "Topic not found", http.StatusNotFound)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil {
		http.Error(w, "Invalid topic payload", http.StatusBadRequest)
		return
	}
	topic.ID = id

	if err := db.UpdateTopic(topic); err != nil {
		http.Error(w, "Failed to update topic", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (h *Handlers) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid topic ID", http.StatusBadRequest)
		return
	}

	if err := db.DeleteTopic(id); err != nil {
		http.Error(w, "Failed to delete topic", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RegenerateDigest enqueues a fresh synthesis for one digest. The worker
// deletes the old audio before calling the provider.
func (h *Handlers) RegenerateDigest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid digest ID", http.StatusBadRequest)
		return
	}

	if _, err := db.GetDigestByID(id); err != nil {
		http.Error(w, "Digest not found", http.StatusNotFound)
		return
	}

	task, err := tasks.NewSynthesizeDigestTask(id)
	if err != nil {
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Error enqueuing synthesize task for digest %d: %v", id, err)
		http.Error(w, "Failed to enqueue task", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
