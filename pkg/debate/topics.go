package debate

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var defaultTopics []byte

// ErrUnknownTopic is returned for a key missing from the catalog.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic is a debate question with a short key.
type Topic struct {
	Key      string `yaml:"key" json:"key"`
	Question string `yaml:"question" json:"question"`
}

// Category groups related topics.
type Category struct {
	Name   string  `yaml:"category" json:"category"`
	Topics []Topic `yaml:"topics" json:"topics"`
}

// Topics is a catalog of debate questions in category order.
type Topics struct {
	categories []Category
	byKey      map[string]Topic
}

// DefaultTopics returns the built-in catalog.
func DefaultTopics() *Topics {
	t, err := ParseTopics(defaultTopics)
	if err != nil {
		panic(fmt.Sprintf("embedded topics: %v", err))
	}
	return t
}

// LoadTopics reads a catalog from a YAML file.
func LoadTopics(path string) (*Topics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	return ParseTopics(data)
}

// ParseTopics decodes a YAML list of categories. Keys must be unique.
func ParseTopics(data []byte) (*Topics, error) {
	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	t := &Topics{categories: cats, byKey: map[string]Topic{}}
	for _, c := range cats {
		for _, topic := range c.Topics {
			if topic.Key == "" || topic.Question == "" {
				return nil, fmt.Errorf("category %s: topic needs a key and a question", c.Name)
			}
			if _, dup := t.byKey[topic.Key]; dup {
				return nil, fmt.Errorf("duplicate topic %s", topic.Key)
			}
			t.byKey[topic.Key] = topic
		}
	}
	return t, nil
}

// Get returns the question for key.
func (t *Topics) Get(key string) (string, error) {
	topic, ok := t.byKey[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, key)
	}
	return topic.Question, nil
}

// Categories returns the catalog in file order.
func (t *Topics) Categories() []Category { return t.categories }

// Keys lists every topic key in category order.
func (t *Topics) Keys() []string {
	var keys []string
	for _, c := range t.categories {
		for _, topic := range c.Topics {
			keys = append(keys, topic.Key)
		}
	}
	return keys
}

// Len is the number of topics.
func (t *Topics) Len() int { return len(t.byKey) }

// Resolve treats s as a topic key when it is one, otherwise as the
// question itself.
func (t *Topics) Resolve(s string) string {
	if q, err := t.Get(s); err == nil {
		return q
	}
	return s
}
