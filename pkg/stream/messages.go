package stream

import "encoding/json"

// Message types pushed to clients.
const (
	TypeInsight   = "insight"
	TypeBreakdown = "breakdown"
	TypeError     = "error"
)

// Envelope wraps every message with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload reports a refresh failure for one metric or flow.
type ErrorPayload struct {
	Source string `json:"source"`
	Zone   string `json:"zone"`
	Error  string `json:"error"`
}

func NewEnvelope(msgType, topic string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Topic: topic, Payload: raw})
}

// Topic names the subject of a message, e.g. "carbon-intensity:PT".
func Topic(name, zone string) string {
	return name + ":" + zone
}

// ErrorTopic names the error channel for a subject. It is kept apart from
// Topic so a failure never replaces the last good view of the subject.
func ErrorTopic(name, zone string) string {
	return "error:" + Topic(name, zone)
}
