package convo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/session"
	"github.com/frontdesklabs/frontdesk/internal/speech"
)

type State string

const (
	StateGreeting  State = "greeting"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
	StateClosing   State = "closing"
	StateClosed    State = "closed"
)

const fallbackReply = "Thanks, I have what I need."
const fallbackSummary = "Thanks for calling, we have your details."

// Speaker is the playback side of the media transport as the state machine
// sees it.
type Speaker interface {
	EnqueueSpeech(text string)
	ClearQueue()
	Hangup()
}

// Event is a typed input to the per-call actor loop.
type Event interface{ isEvent() }

type TranscriptEvent struct {
	Text  string
	Final bool
}

type PlaybackDone struct{}

type HangupEvent struct {
	Reason string
}

func (TranscriptEvent) isEvent() {}
func (PlaybackDone) isEvent()    {}
func (HangupEvent) isEvent()     {}

type generationDone struct {
	token int
	reply speech.Reply
	err   error
}

type ackDue struct {
	token int
}

func (generationDone) isEvent() {}
func (ackDue) isEvent()         {}

// Completion is the single event emitted downstream when a call ends.
type Completion struct {
	CallID       string            `json:"call_id"`
	AccountID    string            `json:"account_id"`
	CallerNumber string            `json:"caller_number"`
	Turns        []session.Turn    `json:"turns"`
	Entities     map[string]string `json:"entities,omitempty"`
	Reason       string            `json:"reason"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at"`
}

// CompletionSink consumes the completion handoff. Implementations must not
// block the caller for long; the actor loop delivers inline.
type CompletionSink interface {
	Deliver(ctx context.Context, c Completion)
}

type CompletionSinkFunc func(ctx context.Context, c Completion)

func (f CompletionSinkFunc) Deliver(ctx context.Context, c Completion) { f(ctx, c) }

// Options tunes turn-taking behavior. Zero values take the documented
// defaults.
type Options struct {
	AckDelay        time.Duration
	BargeInMinChars int
	MinFinalChars   int
	MinTurnsToClose int
	AckPhrases      []string

	OnBargeIn    func()
	OnAck        func()
	OnState      func(from, to State)
	OnReplyReady func(sinceFinal time.Duration)
}

func (o *Options) applyDefaults() {
	if o.AckDelay <= 0 {
		o.AckDelay = time.Second
	}
	if o.BargeInMinChars <= 0 {
		o.BargeInMinChars = 12
	}
	if o.MinFinalChars <= 0 {
		o.MinFinalChars = 2
	}
	if o.MinTurnsToClose <= 0 {
		o.MinTurnsToClose = 3
	}
}

// Machine runs one call's conversation as a single-goroutine actor. All
// inputs arrive as events through Post; generation runs asynchronously and
// races the acknowledgment timer, but its result re-enters through the same
// channel, so state is never touched concurrently.
type Machine struct {
	callID    string
	manager   *session.Manager
	responder speech.Responder
	speaker   Speaker
	sink      CompletionSink
	opts      Options
	log       *zap.Logger

	events chan Event
	doneCh chan struct{}

	state         State
	acks          *ackPicker
	genToken      int
	genCancel     context.CancelFunc
	ackTimer      *time.Timer
	thinkStart    time.Time
	pendingSpeech int
	completed     bool
}

func NewMachine(callID string, manager *session.Manager, responder speech.Responder, speaker Speaker, sink CompletionSink, opts Options, log *zap.Logger) *Machine {
	opts.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		callID:    callID,
		manager:   manager,
		responder: responder,
		speaker:   speaker,
		sink:      sink,
		opts:      opts,
		log:       log.With(zap.String("call_sid", callID)),
		events:    make(chan Event, 64),
		doneCh:    make(chan struct{}),
		state:     StateGreeting,
		acks:      newAckPicker(opts.AckPhrases),
	}
}

func (m *Machine) State() State { return m.state }

// Post delivers an event to the actor. Safe from any goroutine; a no-op once
// the call has closed.
func (m *Machine) Post(ev Event) {
	select {
	case m.events <- ev:
	case <-m.doneCh:
	}
}

// Run owns the call until closure or context cancellation. It speaks the
// greeting first, then serializes every transcript, playback, and generation
// event onto this goroutine.
func (m *Machine) Run(ctx context.Context) {
	call, err := m.manager.Get(m.callID)
	if err != nil {
		m.log.Error("call missing at start", zap.Error(err))
		m.teardown(ctx, "session_missing")
		return
	}

	greeting := strings.TrimSpace(call.Params.Greeting)
	if greeting != "" {
		m.manager.AppendTurn(m.callID, session.RoleAgent, greeting, nil)
		m.say(greeting)
		m.setState(StateSpeaking)
	} else {
		m.setState(StateListening)
	}

	for {
		select {
		case <-ctx.Done():
			m.teardown(ctx, "transport_closed")
			return
		case ev := <-m.events:
			m.handle(ctx, ev)
			if m.state == StateClosed {
				m.teardownTimers()
				m.closeDone()
				return
			}
		}
	}
}

func (m *Machine) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case TranscriptEvent:
		m.onTranscript(ctx, e)
	case PlaybackDone:
		m.onPlaybackDone(ctx)
	case generationDone:
		m.onGenerationDone(ctx, e)
	case ackDue:
		m.onAckDue(e)
	case HangupEvent:
		reason := e.Reason
		if reason == "" {
			reason = "caller_hangup"
		}
		m.finish(ctx, reason)
		m.setState(StateClosed)
	}
}

func (m *Machine) onTranscript(ctx context.Context, t TranscriptEvent) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return
	}

	if !t.Final {
		if m.state == StateSpeaking && len(text) > m.opts.BargeInMinChars {
			m.bargeIn()
		}
		return
	}

	if len(text) < m.opts.MinFinalChars || !HasLetter(text) {
		return
	}

	switch m.state {
	case StateSpeaking:
		m.bargeIn()
	case StateClosing, StateClosed:
		return
	}

	m.manager.Touch(m.callID)

	call, err := m.manager.Get(m.callID)
	if err != nil {
		m.log.Warn("transcript for unknown call", zap.Error(err))
		return
	}

	// A completion phrase is a meta signal, not dialogue; it never joins the
	// turn history.
	if call.CallerTurns() >= m.opts.MinTurnsToClose && SignalsCompletion(text) {
		m.startClosing(ctx)
		return
	}

	if _, err := m.manager.AppendTurn(m.callID, session.RoleCaller, text, nil); err != nil {
		m.log.Warn("append caller turn", zap.Error(err))
		return
	}
	m.startThinking(ctx, text)
}

func (m *Machine) startThinking(ctx context.Context, latest string) {
	m.cancelGeneration()
	m.genToken++
	token := m.genToken
	m.thinkStart = time.Now()
	m.setState(StateThinking)

	genCtx, cancel := context.WithCancel(ctx)
	m.genCancel = cancel

	call, err := m.manager.Get(m.callID)
	if err != nil {
		m.Post(generationDone{token: token, err: err})
		return
	}
	prompt := buildPrompt(call, latest)

	go func() {
		reply, err := m.responder.Respond(genCtx, prompt)
		m.Post(generationDone{token: token, reply: reply, err: err})
	}()

	if !LooksLikeContinuation(latest) {
		m.ackTimer = time.AfterFunc(m.opts.AckDelay, func() {
			m.Post(ackDue{token: token})
		})
	}
}

func (m *Machine) onAckDue(e ackDue) {
	if e.token != m.genToken || m.state != StateThinking {
		return
	}
	phrase := m.acks.next()
	m.say(phrase)
	if m.opts.OnAck != nil {
		m.opts.OnAck()
	}
	m.log.Debug("spoke acknowledgment", zap.String("phrase", phrase))
}

func (m *Machine) onGenerationDone(ctx context.Context, e generationDone) {
	if e.token != m.genToken {
		return
	}
	m.stopAckTimer()

	switch m.state {
	case StateThinking:
		reply := e.reply
		if e.err != nil {
			m.log.Warn("generation failed, degrading", zap.Error(e.err))
			reply = speech.Reply{Text: fallbackReply}
		}
		if strings.TrimSpace(reply.Text) == "" {
			reply.Text = fallbackReply
		}
		if m.opts.OnReplyReady != nil && !m.thinkStart.IsZero() {
			m.opts.OnReplyReady(time.Since(m.thinkStart))
		}
		m.manager.AppendTurn(m.callID, session.RoleAgent, reply.Text, reply.Entities)
		m.say(reply.Text)
		m.setState(StateSpeaking)

	case StateClosing:
		call, _ := m.manager.Get(m.callID)
		summary := strings.TrimSpace(e.reply.Text)
		if e.err != nil || summary == "" {
			summary = fallbackSummary
		}
		signOff := ""
		if call != nil {
			signOff = strings.TrimSpace(call.Params.SignOff)
		}
		closing := summary
		if signOff != "" {
			closing = summary + " " + signOff
		}
		m.manager.AppendTurn(m.callID, session.RoleAgent, closing, nil)
		m.say(closing)
	}
}

// say enqueues one utterance and counts it as outstanding playback. The
// count is what lets an acknowledgment finish playing without the machine
// mistaking it for the end of the queued reply.
func (m *Machine) say(text string) {
	m.pendingSpeech++
	m.speaker.EnqueueSpeech(text)
}

func (m *Machine) onPlaybackDone(ctx context.Context) {
	if m.pendingSpeech > 0 {
		m.pendingSpeech--
	}
	if m.pendingSpeech > 0 {
		return
	}
	switch m.state {
	case StateSpeaking:
		m.setState(StateListening)
	case StateClosing:
		m.finish(ctx, "completed")
		m.setState(StateClosed)
	}
}

func (m *Machine) bargeIn() {
	m.speaker.ClearQueue()
	// Cleared utterances never report playback completion.
	m.pendingSpeech = 0
	m.setState(StateListening)
	if m.opts.OnBargeIn != nil {
		m.opts.OnBargeIn()
	}
	m.log.Debug("barge-in, cleared pending audio")
}

func (m *Machine) startClosing(ctx context.Context) {
	m.cancelGeneration()
	m.genToken++
	token := m.genToken
	m.setState(StateClosing)

	genCtx, cancel := context.WithCancel(ctx)
	m.genCancel = cancel

	call, err := m.manager.Get(m.callID)
	if err != nil {
		m.Post(generationDone{token: token, err: err})
		return
	}

	prompt := speech.Prompt{
		System:   "Summarize the caller's request in one short sentence, speaking to the caller.",
		Turns:    toSpeechTurns(call.Turns),
		UserText: "Please give the one-sentence summary now.",
	}
	go func() {
		reply, err := m.responder.Respond(genCtx, prompt)
		m.Post(generationDone{token: token, reply: reply, err: err})
	}()
}

// finish emits the completion handoff exactly once and releases the call.
func (m *Machine) finish(ctx context.Context, reason string) {
	if m.completed {
		return
	}
	m.completed = true
	m.cancelGeneration()
	m.stopAckTimer()

	call, err := m.manager.End(m.callID, reason)
	switch {
	case errors.Is(err, session.ErrAlreadyEnded), errors.Is(err, session.ErrNotFound):
		// The janitor or another teardown path got here first and already
		// delivered the completion.
		m.speaker.Hangup()
		return
	case err != nil:
		m.log.Warn("end call", zap.Error(err))
		m.speaker.Hangup()
		return
	}
	if m.sink != nil {
		m.sink.Deliver(ctx, Completion{
			CallID:       call.SID,
			AccountID:    call.AccountID,
			CallerNumber: call.CallerNumber,
			Turns:        call.Turns,
			Entities:     call.Entities,
			Reason:       reason,
			StartedAt:    call.StartedAt,
			EndedAt:      call.EndedAt,
		})
	}
	m.manager.Remove(m.callID)
	m.log.Info("call completed",
		zap.String("reason", reason),
		zap.Int("caller_turns", call.CallerTurns()))
	m.speaker.Hangup()
}

func (m *Machine) teardown(ctx context.Context, reason string) {
	m.finish(ctx, reason)
	m.setState(StateClosed)
	m.teardownTimers()
	m.closeDone()
}

func (m *Machine) closeDone() {
	select {
	case <-m.doneCh:
	default:
		close(m.doneCh)
	}
}

// Done is closed once the actor loop has exited.
func (m *Machine) Done() <-chan struct{} { return m.doneCh }

func (m *Machine) teardownTimers() {
	m.cancelGeneration()
	m.stopAckTimer()
}

func (m *Machine) cancelGeneration() {
	if m.genCancel != nil {
		m.genCancel()
		m.genCancel = nil
	}
}

func (m *Machine) stopAckTimer() {
	if m.ackTimer != nil {
		m.ackTimer.Stop()
		m.ackTimer = nil
	}
}

func (m *Machine) setState(next State) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	if m.opts.OnState != nil {
		m.opts.OnState(prev, next)
	}
}

func buildPrompt(call *session.Call, latest string) speech.Prompt {
	var sys strings.Builder
	sys.WriteString("You are a friendly phone receptionist for a trades business. ")
	sys.WriteString("Keep replies to one or two short spoken sentences. ")
	if len(call.Params.Questions) > 0 {
		sys.WriteString("Work through these intake questions naturally, one at a time: ")
		sys.WriteString(strings.Join(call.Params.Questions, "; "))
		sys.WriteString(". ")
	}
	sys.WriteString("Record job details with the capture tool as they come up.")

	turns := toSpeechTurns(call.Turns)
	// The latest utterance was already appended to the history; it goes in as
	// the final user message, not twice.
	if n := len(turns); n > 0 && turns[n-1].Role == speech.RoleCaller && turns[n-1].Text == latest {
		turns = turns[:n-1]
	}

	return speech.Prompt{
		System:   sys.String(),
		Turns:    turns,
		UserText: latest,
	}
}

func toSpeechTurns(turns []session.Turn) []speech.Turn {
	out := make([]speech.Turn, 0, len(turns))
	for _, t := range turns {
		role := speech.RoleCaller
		if t.Role == session.RoleAgent {
			role = speech.RoleAgent
		}
		out = append(out, speech.Turn{Role: role, Text: t.Text})
	}
	return out
}
