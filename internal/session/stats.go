package session

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
)

// Stats are per-topic aggregates, always recomputed from events.
type Stats struct {
	Count    int     `json:"count"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // percentage
	AvgTime  float64 `json:"avgTime"`  // seconds
}

// ComputeStats aggregates events per topic.
func ComputeStats(events []Event) map[domain.Topic]Stats {
	out := make(map[domain.Topic]Stats)
	totals := make(map[domain.Topic]float64)
	for _, e := range events {
		s := out[e.Topic]
		s.Count++
		if e.Correct {
			s.Correct++
		}
		out[e.Topic] = s
		totals[e.Topic] += e.TimeTaken
	}
	for topic, s := range out {
		s.Accuracy = percent(s.Correct, s.Count)
		s.AvgTime = round2(totals[topic] / float64(s.Count))
		out[topic] = s
	}
	return out
}

// OverallAccuracy is 100*correct/total across all topics, 0 when nothing
// was answered.
func OverallAccuracy(stats map[domain.Topic]Stats) float64 {
	var total, correct int
	for _, s := range stats {
		total += s.Count
		correct += s.Correct
	}
	return percent(correct, total)
}

// Accuracy thresholds for recommendations.
const (
	reviewBelow   = 70.0
	practiceBelow = 90.0
)

// Recommend returns the recommendation for one topic.
func Recommend(topic domain.Topic, s Stats) string {
	switch {
	case s.Accuracy < reviewBelow:
		return fmt.Sprintf("Review basics of %s and try 10 easy questions.", topic)
	case s.Accuracy < practiceBelow:
		return fmt.Sprintf("Practice more problems in %s at current difficulty to improve speed.", topic)
	default:
		return fmt.Sprintf("Try advanced questions in %s to challenge yourself.", topic)
	}
}

// Summary is the end-of-session report.
type Summary struct {
	SessionID       domain.SessionID       `json:"sessionId"`
	StartedAt       time.Time              `json:"startedAt"`
	EndedAt         time.Time              `json:"endedAt"`
	PerTopicStats   map[domain.Topic]Stats `json:"perTopicStats"`
	OverallAccuracy float64                `json:"overallAccuracy"`
	Recommendations []string               `json:"recommendations"`
}

// Summarize builds the summary of an ended session. Stats are recomputed
// from the events. Recommendations follow the session's topic order, then
// any other answered topic in first-seen order, and the free-text summary
// (if any) comes first.
func Summarize(s *Session) Summary {
	stats := ComputeStats(s.Events)

	recs := make([]string, 0, len(stats)+1)
	if s.SummaryText != "" {
		recs = append(recs, s.SummaryText)
	}
	for _, topic := range topicsInOrder(s) {
		if st, ok := stats[topic]; ok {
			recs = append(recs, Recommend(topic, st))
		}
	}

	sum := Summary{
		SessionID:       s.ID,
		StartedAt:       s.StartedAt,
		PerTopicStats:   stats,
		OverallAccuracy: OverallAccuracy(stats),
		Recommendations: recs,
	}
	if s.EndedAt != nil {
		sum.EndedAt = *s.EndedAt
	}
	return sum
}

// topicsInOrder lists each topic once: the topic order first, then topics
// only seen in events.
func topicsInOrder(s *Session) []domain.Topic {
	order := make([]domain.Topic, 0, len(s.TopicOrder))
	add := func(t domain.Topic) {
		if !slices.Contains(order, t) {
			order = append(order, t)
		}
	}
	for _, t := range s.TopicOrder {
		add(t)
	}
	for _, e := range s.Events {
		add(e.Topic)
	}
	return order
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round2(100 * float64(n) / float64(d))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
