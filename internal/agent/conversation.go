// Package agent drives quill's turn loop: invoke the model, confirm and
// execute requested tools, feed results back, repeat until the model
// stops or the safety limit trips.
package agent

import "github.com/quill-labs/quill/internal/llm"

// Conversation is the ordered, append-only message log for one session.
// It is the sole memory the model has of prior turns: every request
// sends the full sequence.
type Conversation struct {
	seed     string
	messages []llm.Message
}

// NewConversation creates a conversation seeded with the given system
// prompt. An empty seed means no system message.
func NewConversation(seed string) *Conversation {
	c := &Conversation{seed: seed}
	c.Reset()
	return c
}

// Append adds a message at the end. No reordering, no deduplication.
func (c *Conversation) Append(msg llm.Message) {
	c.messages = append(c.messages, msg)
}

// Reset replaces the whole sequence with a fresh one holding only the
// seed. This is the only way the log shrinks.
func (c *Conversation) Reset() {
	c.messages = nil
	if c.seed != "" {
		c.messages = []llm.Message{{Role: "system", Content: c.seed}}
	}
}

// Messages returns a copy of the sequence in order.
func (c *Conversation) Messages() []llm.Message {
	return append([]llm.Message(nil), c.messages...)
}

// Len reports the number of messages, seed included.
func (c *Conversation) Len() int { return len(c.messages) }
