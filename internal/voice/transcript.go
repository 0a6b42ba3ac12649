package voice

import "encoding/json"

// Event types and roles as reported by the provider. Stored chat events use
// the upper case forms; live socket messages use the lower case ones.
const (
	TypeUserMessage   = "USER_MESSAGE"
	TypeAgentMessage  = "AGENT_MESSAGE"
	TypeLiveUser      = "user_message"
	TypeLiveAssistant = "assistant_message"
	RoleUser          = "USER"
)

// Event is one entry of a chat. Only message events carry text.
type Event struct {
	ID              string          `json:"id"`
	ChatID          string          `json:"chat_id,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	Role            string          `json:"role"`
	Type            string          `json:"type"`
	MessageText     *string         `json:"message_text"`
	EmotionFeatures json.RawMessage `json:"emotion_features,omitempty"`

	// Message is set on live socket messages instead of MessageText.
	Message *LiveMessage `json:"message,omitempty"`
}

type LiveMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// text returns who spoke and what, or ok=false for events that are not
// spoken messages.
func (e Event) text() (isUser bool, content string, ok bool) {
	switch e.Type {
	case TypeUserMessage, TypeAgentMessage:
		if e.MessageText == nil {
			return false, "", false
		}
		return e.Type == TypeUserMessage, *e.MessageText, true
	case TypeLiveUser, TypeLiveAssistant:
		if e.Message == nil {
			return false, "", false
		}
		return e.Type == TypeLiveUser, e.Message.Content, true
	}
	return false, "", false
}

// Emotions decodes the emotion scores of the event. The provider sends them
// either as an object or as a JSON encoded string.
func (e Event) Emotions() map[string]float64 {
	raw := e.EmotionFeatures
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// Turn groups consecutive fragments by the same speaker.
type Turn struct {
	IsUser  bool     `json:"isUser"`
	Content []string `json:"content"`
}

// Condense drops non-message events and merges consecutive messages from the
// same speaker into one turn.
func Condense(events []Event) []Turn {
	turns := []Turn{}
	for _, e := range events {
		isUser, content, ok := e.text()
		if !ok {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].IsUser == isUser {
			turns[n-1].Content = append(turns[n-1].Content, content)
			continue
		}
		turns = append(turns, Turn{IsUser: isUser, Content: []string{content}})
	}
	return turns
}

// Speakers in a feedback transcript.
const (
	SpeakerInterviewee = "interviewee"
	SpeakerInterviewer = "interviewer"
)

// Entry is one spoken message in the transcript sent for feedback.
type Entry struct {
	Speaker         string             `json:"speaker"`
	Text            string             `json:"text"`
	EmotionFeatures map[string]float64 `json:"emotionFeatures,omitempty"`
}

// Transcript keeps stored message events in order. Emotion scores are kept
// for the interviewee only.
func Transcript(events []Event) []Entry {
	out := make([]Entry, 0, len(events))
	for _, e := range events {
		if e.Type != TypeUserMessage && e.Type != TypeAgentMessage {
			continue
		}
		if e.MessageText == nil {
			continue
		}
		entry := Entry{Speaker: SpeakerInterviewer, Text: *e.MessageText}
		if e.Type == TypeUserMessage {
			entry.Speaker = SpeakerInterviewee
		}
		if e.Role == RoleUser {
			entry.EmotionFeatures = e.Emotions()
		}
		out = append(out, entry)
	}
	return out
}
