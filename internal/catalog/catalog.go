// Package catalog holds the set of practice topics the engine knows about,
// together with the strategy tips surfaced on wrong or slow answers.
package catalog

import (
	"sort"

	"github.com/abhisek/mentalmath/internal/domain"
)

// DefaultTip is used for topics that have no configured tips.
const DefaultTip = "Try a step-by-step approach."

// Topic describes one subject area.
type Topic struct {
	Name      domain.Topic `json:"name"`
	Title     string       `json:"title,omitempty"`
	Subtopics []string     `json:"subtopics,omitempty"`
	// Tips are ordered: the first is shown on a wrong answer, the second on
	// a correct but slow one.
	Tips []string `json:"tips,omitempty"`
}

// Catalog is an immutable topic lookup table.
type Catalog struct {
	topics map[domain.Topic]Topic
}

// New builds a catalog from topics. Later entries replace earlier ones with
// the same name.
func New(topics ...Topic) *Catalog {
	c := &Catalog{topics: make(map[domain.Topic]Topic, len(topics))}
	for _, t := range topics {
		c.topics[t.Name] = t
	}
	return c
}

// Merge returns a new catalog with extra topics layered over c. Tips and
// subtopics of an existing topic are replaced only when the extra entry
// supplies them.
func (c *Catalog) Merge(extra ...Topic) *Catalog {
	out := &Catalog{topics: make(map[domain.Topic]Topic, len(c.topics)+len(extra))}
	for k, v := range c.topics {
		out.topics[k] = v
	}
	for _, t := range extra {
		cur, ok := out.topics[t.Name]
		if !ok {
			out.topics[t.Name] = t
			continue
		}
		if t.Title != "" {
			cur.Title = t.Title
		}
		if len(t.Subtopics) > 0 {
			cur.Subtopics = t.Subtopics
		}
		if len(t.Tips) > 0 {
			cur.Tips = t.Tips
		}
		out.topics[t.Name] = cur
	}
	return out
}

// Get returns the topic definition.
func (c *Catalog) Get(name domain.Topic) (Topic, bool) {
	t, ok := c.topics[name]
	return t, ok
}

// Has reports whether the topic is known.
func (c *Catalog) Has(name domain.Topic) bool {
	_, ok := c.topics[name]
	return ok
}

// Tips returns the configured tips for a topic, or a single DefaultTip.
func (c *Catalog) Tips(name domain.Topic) []string {
	if t, ok := c.topics[name]; ok && len(t.Tips) > 0 {
		return t.Tips
	}
	return []string{DefaultTip}
}

// Names returns all topic names in lexical order.
func (c *Catalog) Names() []domain.Topic {
	names := make([]domain.Topic, 0, len(c.topics))
	for n := range c.topics {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of topics.
func (c *Catalog) Len() int { return len(c.topics) }
