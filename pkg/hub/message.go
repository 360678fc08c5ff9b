// Package hub fans messages out to websocket clients. It carries
// shared-table updates, which every client must see in order, and camera
// frames, which a slow client may skip.
package hub

// Kind selects the websocket frame type and the overflow policy.
type Kind int

const (
	// Update is a JSON text message. A client whose queue is full is
	// disconnected; it resyncs from the snapshot on reconnect.
	Update Kind = iota

	// Frame is a binary JPEG. A client whose queue is full skips it.
	Frame
)

func (k Kind) String() string {
	if k == Frame {
		return "frame"
	}
	return "update"
}

// Message is one broadcast unit.
type Message struct {
	Kind Kind
	Data []byte
}

// UpdateMessage wraps an encoded table update.
func UpdateMessage(data []byte) Message {
	return Message{Kind: Update, Data: data}
}

// FrameMessage wraps an encoded JPEG frame.
func FrameMessage(jpeg []byte) Message {
	return Message{Kind: Frame, Data: jpeg}
}
