package routing

import (
	"context"
	"testing"
	"time"
)

const (
	dialed = "+15550009999"
	caller = "+15550001111"
)

// Tuesday 10:00 UTC / Tuesday 02:00 UTC for the 9-17 window below.
var (
	insideHours  = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	outsideHours = time.Date(2026, time.March, 3, 2, 0, 0, 0, time.UTC)
)

func weekdaySchedule() *Schedule {
	return &Schedule{
		Timezone: "UTC",
		Windows: []Window{
			{Weekday: time.Tuesday, StartMinute: 9 * 60, EndMinute: 17 * 60},
		},
	}
}

func newEngineAt(store Store, at time.Time) *Engine {
	e := NewEngine(store, nil, nil)
	e.now = func() time.Time { return at }
	return e
}

func TestRouteDecisionTable(t *testing.T) {
	cases := []struct {
		name       string
		mode       Mode
		inHours    bool
		known      bool
		override   Override
		wantRoute  Route
		wantReason string
	}{
		{"override intake wins over everything", ModeVoicemail, false, true, OverrideIntake, RouteIntake, ReasonManualOverrideIntake},
		{"override voicemail wins over intake mode", ModeIntake, true, false, OverrideVoicemail, RouteVoicemail, ReasonManualOverrideVoicemail},
		{"fixed intake", ModeIntake, true, true, OverrideAuto, RouteIntake, ReasonModeIntake},
		{"fixed intake after hours", ModeIntake, false, false, OverrideAuto, RouteIntake, ReasonModeIntake},
		{"fixed voicemail", ModeVoicemail, true, false, OverrideAuto, RouteVoicemail, ReasonModeVoicemail},
		{"smart auto after hours unknown caller", ModeSmartAuto, false, false, OverrideAuto, RouteVoicemail, ReasonAfterHoursOverride},
		{"smart auto after hours known caller", ModeSmartAuto, false, true, OverrideAuto, RouteVoicemail, ReasonAfterHoursOverride},
		{"smart auto in hours known caller", ModeSmartAuto, true, true, OverrideAuto, RouteVoicemail, ReasonSmartAutoKnownCaller},
		{"smart auto in hours first time", ModeSmartAuto, true, false, OverrideAuto, RouteIntake, ReasonSmartAutoFirstTime},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := NewInMemoryStore()
			store.RegisterAccount(dialed, "acct-1", Settings{
				Enabled:        true,
				Mode:           c.mode,
				AfterHoursMode: ModeVoicemail,
				Schedule:       weekdaySchedule(),
			})
			if c.known || c.override != OverrideAuto {
				store.PutCaller(CallerRecord{
					AccountID: "acct-1",
					Number:    caller,
					Label:     LabelLead,
					Override:  c.override,
				})
			}

			at := insideHours
			if !c.inHours {
				at = outsideHours
			}
			got := newEngineAt(store, at).Route(context.Background(), caller, dialed)
			if got.Route != c.wantRoute || got.Reason != c.wantReason {
				t.Fatalf("got %s/%s, want %s/%s", got.Route, got.Reason, c.wantRoute, c.wantReason)
			}
		})
	}
}

func TestRouteUnknownDialedNumber(t *testing.T) {
	e := newEngineAt(NewInMemoryStore(), insideHours)
	got := e.Route(context.Background(), caller, "+15550000000")
	if got.Route != RouteVoicemail || got.Reason != ReasonUserNotFound {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteFeatureDisabled(t *testing.T) {
	store := NewInMemoryStore()
	store.RegisterAccount(dialed, "acct-1", Settings{Enabled: false, Mode: ModeIntake})
	got := newEngineAt(store, insideHours).Route(context.Background(), caller, dialed)
	if got.Route != RouteVoicemail || got.Reason != ReasonFeatureDisabled {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteSpamCaller(t *testing.T) {
	store := NewInMemoryStore()
	store.RegisterAccount(dialed, "acct-1", Settings{
		Enabled: true,
		Mode:    ModeSmartAuto,
	})
	store.PutCaller(CallerRecord{AccountID: "acct-1", Number: caller, Label: LabelSpam})
	got := newEngineAt(store, insideHours).Route(context.Background(), caller, dialed)
	if got.Route != RouteVoicemail || got.Reason != ReasonSpamCaller {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteAfterHoursIntakeOverride(t *testing.T) {
	store := NewInMemoryStore()
	store.RegisterAccount(dialed, "acct-1", Settings{
		Enabled:        true,
		Mode:           ModeSmartAuto,
		AfterHoursMode: ModeIntake,
		Schedule:       weekdaySchedule(),
	})
	got := newEngineAt(store, outsideHours).Route(context.Background(), caller, dialed)
	if got.Route != RouteIntake || got.Reason != ReasonAfterHoursOverride {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteMarksCallerSeen(t *testing.T) {
	store := NewInMemoryStore()
	store.RegisterAccount(dialed, "acct-1", Settings{Enabled: true, Mode: ModeSmartAuto})
	e := newEngineAt(store, insideHours)

	first := e.Route(context.Background(), caller, dialed)
	if first.Reason != ReasonSmartAutoFirstTime {
		t.Fatalf("first call: %+v", first)
	}
	second := e.Route(context.Background(), caller, dialed)
	if second.Reason != ReasonSmartAutoKnownCaller {
		t.Fatalf("second call: %+v", second)
	}
}

func TestNormalizeNumber(t *testing.T) {
	if NormalizeNumber("+1 (555) 000-1111") != "+15550001111" {
		t.Fatal("formatting not stripped")
	}
}
