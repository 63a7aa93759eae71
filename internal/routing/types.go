package routing

import "time"

// Mode is the per-account routing mode.
type Mode string

const (
	ModeIntake    Mode = "intake"
	ModeVoicemail Mode = "voicemail"
	ModeSmartAuto Mode = "smart_auto"
)

// Route is where an inbound call ends up.
type Route string

const (
	RouteIntake    Route = "intake"
	RouteVoicemail Route = "voicemail"
)

// Reason codes attached to every decision for observability.
const (
	ReasonUserNotFound            = "user_not_found"
	ReasonFeatureDisabled         = "feature_disabled"
	ReasonManualOverrideIntake    = "manual_override_intake"
	ReasonManualOverrideVoicemail = "manual_override_voicemail"
	ReasonModeIntake              = "mode_intake"
	ReasonModeVoicemail           = "mode_voicemail"
	ReasonSpamCaller              = "spam_caller"
	ReasonAfterHoursOverride      = "after_hours_override"
	ReasonSmartAutoKnownCaller    = "smart_auto_known_caller"
	ReasonSmartAutoFirstTime      = "smart_auto_first_time"
	ReasonFallbackDefault         = "fallback_default"
)

// Window is one business-hours span on a weekday, in minutes from midnight.
// EndMinute < StartMinute means the window wraps past midnight.
type Window struct {
	Weekday     time.Weekday `json:"weekday"`
	StartMinute int          `json:"start_minute"`
	EndMinute   int          `json:"end_minute"`
}

// Schedule is an account's business-hours configuration. A nil schedule or an
// empty window list means always active.
type Schedule struct {
	Timezone string   `json:"timezone"`
	Windows  []Window `json:"windows"`
}

// Settings is per-account routing configuration, read-only to the engine.
type Settings struct {
	AccountID      string    `json:"account_id"`
	Enabled        bool      `json:"enabled"`
	Mode           Mode      `json:"mode"`
	AfterHoursMode Mode      `json:"after_hours_mode"`
	Schedule       *Schedule `json:"schedule,omitempty"`
}

type CallerLabel string

const (
	LabelLead     CallerLabel = "lead"
	LabelClient   CallerLabel = "client"
	LabelPersonal CallerLabel = "personal"
	LabelSpam     CallerLabel = "spam"
)

// Override is a per-caller manual routing pin.
type Override string

const (
	OverrideAuto      Override = "auto"
	OverrideIntake    Override = "intake"
	OverrideVoicemail Override = "voicemail"
)

// CallerRecord is the account's memory of one phone number.
type CallerRecord struct {
	AccountID   string      `json:"account_id"`
	Number      string      `json:"number"`
	Label       CallerLabel `json:"label"`
	DisplayName string      `json:"display_name,omitempty"`
	Override    Override    `json:"override"`
	FirstSeenAt time.Time   `json:"first_seen_at"`
	LastSeenAt  time.Time   `json:"last_seen_at"`
}

// Decision is the routing outcome for one inbound call.
type Decision struct {
	AccountID string `json:"account_id,omitempty"`
	Route     Route  `json:"route"`
	Reason    string `json:"reason"`
}
