package session

import "time"

// Mode selects how the receptionist behaves on a connected call.
type Mode string

const (
	ModeIntake Mode = "intake"
	ModeHybrid Mode = "hybrid"
)

type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Turn is one utterance in the call transcript, caller or agent.
type Turn struct {
	ID       string            `json:"turn_id"`
	Role     Role              `json:"role"`
	Text     string            `json:"text"`
	Entities map[string]string `json:"entities,omitempty"`
	At       time.Time         `json:"at"`
}

// Params is everything a media stream needs to run a call: they are staged
// before the stream connects and bound to the call SID on the start frame.
type Params struct {
	AccountID     string            `json:"account_id"`
	CallerNumber  string            `json:"caller_number"`
	Mode          Mode              `json:"mode"`
	VoiceID       string            `json:"voice_id"`
	TTSPreference string            `json:"tts_preference"`
	CustomVoices  map[string]string `json:"custom_voices,omitempty"`
	Greeting      string            `json:"greeting"`
	Questions     []string          `json:"questions,omitempty"`
	SignOff       string            `json:"sign_off"`
}
