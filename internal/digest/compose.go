// Package digest decides which scored episodes qualify for a topic's
// digest, composes the digest, and coordinates its audio synthesis.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"podigest/internal/db"
	"podigest/internal/drafter"
	"podigest/internal/models"
)

// ErrInsufficientEpisodes is returned when fewer episodes qualify than
// the topic's minimum. It is a skip, not a failure: no rows are written
// and the episodes stay eligible for the next run.
var ErrInsufficientEpisodes = errors.New("insufficient episodes")

// Composer applies the eligibility gate and persists eligible digests.
type Composer struct {
	Drafter         drafter.Drafter
	GlobalThreshold float64
}

// SelectEpisodes filters episodes scoring at or above the topic's
// threshold, orders them by descending score with the most recent
// publish date as tie-break, and truncates to the topic's maximum.
func SelectEpisodes(topic models.Topic, episodes []models.Episode, globalThreshold float64) []models.Episode {
	threshold := topic.Threshold(globalThreshold)

	var qualifying []models.Episode
	for _, ep := range episodes {
		if score, ok := ep.Score(topic.Slug); ok && score >= threshold {
			qualifying = append(qualifying, ep)
		}
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		si, _ := qualifying[i].Score(topic.Slug)
		sj, _ := qualifying[j].Score(topic.Slug)
		if si != sj {
			return si > sj
		}
		return publishedAfter(qualifying[i].PublishedAt, qualifying[j].PublishedAt)
	})

	if topic.MaxEpisodes > 0 && len(qualifying) > topic.MaxEpisodes {
		qualifying = qualifying[:topic.MaxEpisodes]
	}
	return qualifying
}

func publishedAfter(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

// QualifiesForAny reports whether an episode's scores clear the
// threshold of at least one of the given topics. Episodes that qualify
// for none become NOT_RELEVANT after a composition run.
func QualifiesForAny(ep models.Episode, topics []models.Topic, globalThreshold float64) bool {
	for _, topic := range topics {
		if score, ok := ep.Score(topic.Slug); ok && score >= topic.Threshold(globalThreshold) {
			return true
		}
	}
	return false
}

// Compose runs the eligibility gate for one topic and, if it passes,
// drafts the script and persists the digest, its episode links and the
// episodes' DIGESTED status in one transaction. A drafting error aborts
// the topic with no writes.
func (c *Composer) Compose(ctx context.Context, topic models.Topic, date time.Time, episodes []models.Episode) (models.Digest, error) {
	selected := SelectEpisodes(topic, episodes, c.GlobalThreshold)
	if len(selected) < topic.MinEpisodes {
		return models.Digest{}, fmt.Errorf("topic %s: %d qualifying episodes, minimum %d: %w",
			topic.Slug, len(selected), topic.MinEpisodes, ErrInsufficientEpisodes)
	}

	summaries := make([]drafter.EpisodeSummary, 0, len(selected))
	for _, ep := range selected {
		score, _ := ep.Score(topic.Slug)
		summary := drafter.EpisodeSummary{Score: score}
		if ep.Title != nil {
			summary.Title = *ep.Title
		} else {
			summary.Title = ep.GUID
		}
		if ep.Transcript != nil {
			summary.Transcript = *ep.Transcript
		}
		summaries = append(summaries, summary)
	}

	script, err := c.Drafter.Draft(ctx, topic, summaries, date)
	if err != nil {
		return models.Digest{}, fmt.Errorf("topic %s: %w", topic.Slug, err)
	}

	links := make([]db.SelectedEpisode, 0, len(selected))
	for i, ep := range selected {
		score, _ := ep.Score(topic.Slug)
		links = append(links, db.SelectedEpisode{
			EpisodeID: ep.ID,
			GUID:      ep.GUID,
			Score:     score,
			Position:  i + 1,
		})
	}

	dg, err := db.CreateDigestWithLinks(topic.ID, topic.Slug, date, script, len(strings.Fields(script)), links)
	if err != nil {
		return models.Digest{}, fmt.Errorf("topic %s: %w", topic.Slug, err)
	}

	log.Printf("Composed digest %d for topic %s with %d episodes", dg.ID, topic.Slug, len(selected))
	return dg, nil
}
