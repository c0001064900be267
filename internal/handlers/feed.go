package handlers

import (
	"log"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"podigest/internal/db"
	"podigest/internal/feed"
	"podigest/internal/models"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uuid := vars["uuid"]

	subscriber, err := db.GetSubscriberByRSSUUID(uuid)
	if err != nil {
		http.Error(w, "Subscriber not found", http.StatusNotFound)
		return
	}

	digests, err := db.GetCompletedDigests(100)
	if err != nil {
		log.Printf("Error getting digests: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	topicsByID := map[int]models.Topic{}
	items := make([]feed.Item, 0, len(digests))
	for _, dg := range digests {
		topic, ok := topicsByID[dg.TopicID]
		if !ok {
			topic, err = db.GetTopicByID(dg.TopicID)
			if err != nil {
				log.Printf("Error getting topic %d: %v", dg.TopicID, err)
				continue
			}
			topicsByID[dg.TopicID] = topic
		}
		items = append(items, feed.Item{Digest: dg, Topic: topic})
	}

	rss, err := feed.GenerateRSS(subscriber, items, r)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

func (h *Handlers) ServeAudioFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filename := vars["filename"]

	filePath := filepath.Join(h.audioStoragePath, filename)
	http.ServeFile(w, r, filePath)
}
