package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ygrebnov/gateways"
)

// Batch is a batch document: the messages to dispatch and the groups to
// cancel before dispatching.
type Batch struct {
	Messages []MessageEntry `json:"messages"`
	Cancel   []int          `json:"cancel"`
}

// MessageEntry describes one message of a batch document.
type MessageEntry struct {
	Group    int    `json:"group"`
	Terminal bool   `json:"terminal"`
	ID       string `json:"id"`
	Payload  string `json:"payload"`
}

// LoadBatch reads a batch document (.yaml, .yml or .json).
func LoadBatch(path string) (*Batch, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err = k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	var b Batch
	if err = k.UnmarshalWithConf("", &b, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	return &b, nil
}

// Build creates the messages of b in document order.
func (b Batch) Build() ([]*gateways.Message, error) {
	out := make([]*gateways.Message, 0, len(b.Messages))
	for i, e := range b.Messages {
		opts := []gateways.MessageOption{gateways.WithMessageID(e.ID)}
		if e.Payload != "" {
			opts = append(opts, gateways.WithPayload(e.Payload))
		}

		var (
			m   *gateways.Message
			err error
		)
		if e.Terminal {
			m, err = gateways.NewTerminationMessage(e.Group, opts...)
		} else {
			m, err = gateways.NewMessage(e.Group, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("batch position %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
