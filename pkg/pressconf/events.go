package pressconf

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed events.yaml
var defaultEvents []byte

// ErrUnknownEvent is returned for a key missing from the catalog.
var ErrUnknownEvent = errors.New("unknown event")

// Event is the news the spokesperson has to address.
type Event struct {
	Key     string `json:"key" yaml:"key"`
	Title   string `json:"title" yaml:"title"`
	Details string `json:"details" yaml:"details"`
}

// Events is an ordered event catalog.
type Events struct {
	list []Event
}

// DefaultEvents returns the built-in events.
func DefaultEvents() *Events {
	e, err := ParseEvents(defaultEvents)
	if err != nil {
		panic(fmt.Sprintf("embedded events: %v", err))
	}
	return e
}

// LoadEvents reads a YAML list of events from path.
func LoadEvents(path string) (*Events, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return ParseEvents(data)
}

// ParseEvents decodes a YAML list of events.
func ParseEvents(data []byte) (*Events, error) {
	var list []Event
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	seen := map[string]bool{}
	for _, e := range list {
		if e.Key == "" || e.Details == "" {
			return nil, errors.New("event needs a key and details")
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("duplicate event %s", e.Key)
		}
		seen[e.Key] = true
	}
	return &Events{list: list}, nil
}

// Keys lists event keys in catalog order.
func (e *Events) Keys() []string {
	keys := make([]string, len(e.list))
	for i, ev := range e.list {
		keys[i] = ev.Key
	}
	return keys
}

// All returns every event.
func (e *Events) All() []Event { return append([]Event(nil), e.list...) }

// Get looks an event up by key.
func (e *Events) Get(key string) (Event, error) {
	for _, ev := range e.list {
		if ev.Key == key {
			return ev, nil
		}
	}
	return Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, key)
}
