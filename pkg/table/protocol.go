package table

import (
	"encoding/json"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// Op is a wire message kind.
type Op string

const (
	// OpSet carries entries that changed.
	OpSet Op = "set"
	// OpSnapshot carries the sender's full table, sent once per connection.
	OpSnapshot Op = "snapshot"
)

// Message is the JSON frame exchanged over the table websocket.
type Message struct {
	Op      Op      `json:"op"`
	Entries []Entry `json:"entries"`
}

// Encode marshals a message.
func Encode(op Op, entries []Entry) ([]byte, error) {
	return json.Marshal(Message{Op: op, Entries: entries})
}

// Decode unmarshals and checks a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "decode table message")
	}
	switch m.Op {
	case OpSet, OpSnapshot:
	default:
		return m, errors.Newf("unknown table op %q", m.Op)
	}
	return m, nil
}
