package routing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Engine decides where an inbound call goes before any media session exists.
// Every path resolves to a route with a reason code; storage trouble degrades
// to voicemail rather than failing the call.
type Engine struct {
	store      Store
	log        *zap.Logger
	onDecision func(route, reason string)
	now        func() time.Time
}

func NewEngine(store Store, log *zap.Logger, onDecision func(route, reason string)) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log, onDecision: onDecision, now: time.Now}
}

// Route applies the documented precedence, first match wins:
// manual override, fixed mode, spam label, then smart_auto's
// schedule/caller-history rules.
func (e *Engine) Route(ctx context.Context, from, to string) Decision {
	accountID, err := e.store.AccountByNumber(ctx, to)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.log.Warn("account lookup failed", zap.String("to", to), zap.Error(err))
		}
		return e.decide(Decision{Route: RouteVoicemail, Reason: ReasonUserNotFound})
	}

	settings, err := e.store.Settings(ctx, accountID)
	if err != nil {
		e.log.Warn("settings lookup failed", zap.String("account_id", accountID), zap.Error(err))
		return e.decide(Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonFallbackDefault})
	}
	if !settings.Enabled {
		return e.decide(Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonFeatureDisabled})
	}

	withinHours := settings.Schedule.Active(e.now())

	caller, known, err := e.store.TouchCaller(ctx, accountID, from)
	if err != nil {
		// Treat the caller as first-time rather than dropping the call.
		e.log.Warn("caller upsert failed", zap.String("account_id", accountID), zap.Error(err))
		caller, known = CallerRecord{Override: OverrideAuto}, false
	}

	decision := Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonFallbackDefault}
	switch {
	case caller.Override == OverrideIntake:
		decision = Decision{AccountID: accountID, Route: RouteIntake, Reason: ReasonManualOverrideIntake}
	case caller.Override == OverrideVoicemail:
		decision = Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonManualOverrideVoicemail}
	case settings.Mode == ModeIntake:
		decision = Decision{AccountID: accountID, Route: RouteIntake, Reason: ReasonModeIntake}
	case settings.Mode == ModeVoicemail:
		decision = Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonModeVoicemail}
	case caller.Label == LabelSpam:
		decision = Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonSpamCaller}
	case settings.Mode == ModeSmartAuto && !withinHours:
		route := RouteVoicemail
		if settings.AfterHoursMode == ModeIntake {
			route = RouteIntake
		}
		decision = Decision{AccountID: accountID, Route: route, Reason: ReasonAfterHoursOverride}
	case settings.Mode == ModeSmartAuto && known:
		decision = Decision{AccountID: accountID, Route: RouteVoicemail, Reason: ReasonSmartAutoKnownCaller}
	case settings.Mode == ModeSmartAuto:
		decision = Decision{AccountID: accountID, Route: RouteIntake, Reason: ReasonSmartAutoFirstTime}
	}
	return e.decide(decision)
}

func (e *Engine) decide(d Decision) Decision {
	e.log.Info("routing decision",
		zap.String("account_id", d.AccountID),
		zap.String("route", string(d.Route)),
		zap.String("reason", d.Reason))
	if e.onDecision != nil {
		e.onDecision(string(d.Route), d.Reason)
	}
	return d
}
