package model

import (
	"encoding/json"
	"slices"
)

// MessageLog is the append-only, insertion-ordered message sequence of a session.
// The zero value is an empty log.
type MessageLog struct {
	msgs []Message
}

func (l *MessageLog) Append(m Message) {
	l.msgs = append(l.msgs, m)
}

// All returns the messages in insertion order. The slice is a copy.
func (l *MessageLog) All() []Message {
	return slices.Clone(l.msgs)
}

func (l *MessageLog) Len() int { return len(l.msgs) }

func (l *MessageLog) Last() (Message, bool) {
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return l.msgs[len(l.msgs)-1], true
}

// CountBy returns how many messages were sent by sender.
func (l *MessageLog) CountBy(sender Sender) int {
	n := 0
	for _, m := range l.msgs {
		if m.Sender == sender {
			n++
		}
	}
	return n
}

func (l MessageLog) MarshalJSON() ([]byte, error) {
	if l.msgs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.msgs)
}

func (l *MessageLog) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &l.msgs)
}
