// Package transport runs one telephony media-stream websocket per call:
// inbound companded audio to the transcriber, paced outbound playback back to
// the provider.
package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/codec"
	"github.com/frontdesklabs/frontdesk/internal/convo"
	"github.com/frontdesklabs/frontdesk/internal/protocol"
	"github.com/frontdesklabs/frontdesk/internal/session"
	"github.com/frontdesklabs/frontdesk/internal/speech"
)

const (
	transportSampleRate = 8000
	frameDuration       = 20 * time.Millisecond
	// 20 ms of 8 kHz companded audio.
	frameBytes = 160

	markTimeout = 2 * time.Second
)

var ErrNoPendingCall = errors.New("no staged call for stream")

// Conn is the slice of a websocket connection the stream needs. Satisfied by
// *websocket.Conn.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// Deps wires one stream to the rest of the system.
type Deps struct {
	Pending       *session.PendingCalls
	Calls         *session.Manager
	Transcriber   speech.Transcriber
	Responder     speech.Responder
	Chain         *speech.Chain
	Sink          convo.CompletionSink
	ConvoOpts     convo.Options
	ASRSampleRate int
	Log           *zap.Logger

	OnMediaFrame func(direction string)
	OnCallEvent  func(event string)
}

type playItem struct {
	text string
	gen  int
}

// Stream owns one media websocket from start frame to teardown. A single
// writer goroutine serializes all outbound frames; the playback goroutine
// paces audio at real time and checks the clear generation before every
// frame so barge-in stops output immediately.
type Stream struct {
	deps Deps
	conn Conn
	log  *zap.Logger

	outbound  chan any
	playQueue chan playItem
	marks     chan string

	speaking atomic.Bool

	genMu   sync.Mutex
	playGen int

	callSID   string
	streamSID string
	voice     speech.VoiceSelection
	machine   *convo.Machine
	asr       speech.TranscriptStream

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewStream(conn Conn, deps Deps) *Stream {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.ASRSampleRate == 0 {
		deps.ASRSampleRate = 16000
	}
	return &Stream{
		deps:      deps,
		conn:      conn,
		log:       deps.Log,
		outbound:  make(chan any, 256),
		playQueue: make(chan playItem, 32),
		marks:     make(chan string, 16),
	}
}

// Run reads frames until the provider stops the stream or the socket dies.
// It returns after the call's state machine has wound down.
func (s *Stream) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer s.teardown()

	// ReadMessage only unblocks when the socket closes.
	go func() {
		<-ctx.Done()
		s.Hangup()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-s.outbound:
				if !ok {
					return
				}
				if err := s.conn.WriteJSON(frame); err != nil {
					s.log.Debug("socket write failed", zap.Error(err))
					cancel()
					return
				}
			}
		}
	}()

	var runErr error
readLoop:
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		frame, err := protocol.ParseFrame(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedEvent) {
				continue
			}
			s.log.Debug("unparseable frame", zap.Error(err))
			continue
		}

		switch f := frame.(type) {
		case protocol.ConnectedFrame:
			// Informational only.
		case protocol.StartFrame:
			if err := s.onStart(ctx, f); err != nil {
				runErr = err
				break readLoop
			}
		case protocol.MediaFrame:
			s.onMedia(ctx, f)
		case protocol.MarkFrame:
			select {
			case s.marks <- f.Mark.Name:
			default:
			}
		case protocol.StopFrame:
			s.postHangup("provider_stop")
			break readLoop
		}

		select {
		case <-ctx.Done():
			break readLoop
		default:
		}
	}

	s.postHangup("transport_closed")
	cancel()

	if s.machine != nil {
		select {
		case <-s.machine.Done():
		case <-time.After(5 * time.Second):
			s.log.Warn("state machine slow to stop", zap.String("call_sid", s.callSID))
		}
	}
	<-writerDone
	return runErr
}

func (s *Stream) onStart(ctx context.Context, f protocol.StartFrame) error {
	if s.machine != nil {
		s.log.Warn("duplicate start frame", zap.String("call_sid", f.Start.CallSID))
		return nil
	}

	params, ok := s.deps.Pending.Take(f.Start.CallSID)
	if !ok {
		s.log.Warn("stream for unknown call rejected", zap.String("call_sid", f.Start.CallSID))
		return ErrNoPendingCall
	}

	s.callSID = f.Start.CallSID
	s.streamSID = f.StreamSID
	s.voice = speech.VoiceSelection{Preset: params.VoiceID, Custom: params.CustomVoices}
	s.log = s.log.With(zap.String("call_sid", s.callSID), zap.String("stream_sid", s.streamSID))

	s.deps.Calls.Create(s.callSID, s.streamSID, params)
	if s.deps.OnCallEvent != nil {
		s.deps.OnCallEvent("stream_started")
	}

	asr, err := s.deps.Transcriber.Start(ctx, s.callSID, s.deps.ASRSampleRate)
	if err != nil {
		s.log.Error("transcriber start failed", zap.Error(err))
		return err
	}
	s.asr = asr

	s.machine = convo.NewMachine(s.callSID, s.deps.Calls, s.deps.Responder, s, s.deps.Sink, s.deps.ConvoOpts, s.log)
	go s.machine.Run(ctx)
	go s.pumpTranscripts()
	go s.playbackLoop(ctx)

	s.log.Info("media stream bound",
		zap.String("account_id", params.AccountID),
		zap.String("mode", string(params.Mode)))
	return nil
}

func (s *Stream) onMedia(ctx context.Context, f protocol.MediaFrame) {
	if s.asr == nil {
		return
	}
	if s.deps.OnMediaFrame != nil {
		s.deps.OnMediaFrame("inbound")
	}
	// Drop caller audio while the agent is speaking so the pipeline never
	// transcribes its own voice.
	if s.speaking.Load() {
		return
	}

	mulaw, err := base64.StdEncoding.DecodeString(f.Media.Payload)
	if err != nil {
		s.log.Debug("bad media payload", zap.Error(err))
		return
	}
	pcm := codec.DecodeMulawBuffer(mulaw)
	if s.deps.ASRSampleRate == 2*transportSampleRate {
		pcm = codec.UpsampleBuffer2x(pcm)
	}
	if err := s.asr.SendAudio(ctx, pcm); err != nil {
		s.log.Debug("transcriber send failed", zap.Error(err))
	}
}

func (s *Stream) pumpTranscripts() {
	for t := range s.asr.Events() {
		s.machine.Post(convo.TranscriptEvent{Text: t.Text, Final: t.Final})
	}
}

// EnqueueSpeech implements convo.Speaker.
func (s *Stream) EnqueueSpeech(text string) {
	item := playItem{text: text, gen: s.currentGen()}
	select {
	case s.playQueue <- item:
	default:
		s.log.Warn("playback queue full, dropping utterance")
	}
}

// ClearQueue implements convo.Speaker: invalidates everything queued or in
// flight and asks the provider to flush its buffered audio.
func (s *Stream) ClearQueue() {
	// The clear frame goes out under the same lock that bumps the
	// generation, so no stale media frame can be queued behind it.
	s.genMu.Lock()
	s.playGen++
	s.send(protocol.NewClearFrame(s.streamSID))
	s.genMu.Unlock()

	for {
		select {
		case <-s.playQueue:
		default:
			return
		}
	}
}

// Hangup implements convo.Speaker.
func (s *Stream) Hangup() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.conn.Close()
	})
}

func (s *Stream) playbackLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-s.playQueue:
			if item.gen != s.currentGen() {
				continue
			}
			s.playItem(ctx, item)
		}
	}
}

func (s *Stream) playItem(ctx context.Context, item playItem) {
	rendered, err := s.deps.Chain.Render(ctx, item.text, s.voice, transportSampleRate)
	if err != nil {
		// No audio from any backend: the turn proceeds silently.
		if !errors.Is(err, speech.ErrNoAudio) {
			s.log.Warn("render failed", zap.Error(err))
		}
		s.machine.Post(convo.PlaybackDone{})
		return
	}

	// Caller audio is suppressed only while agent audio is actually in
	// flight; a slow synthesis backend must not eat caller speech.
	s.speaking.Store(true)
	defer s.speaking.Store(false)

	mulaw := codec.EncodeMulawBuffer(rendered)
	for _, frame := range splitFrames(mulaw, frameBytes) {
		if !s.sendIfCurrent(item.gen, protocol.NewMediaFrame(s.streamSID, base64.StdEncoding.EncodeToString(frame))) {
			return
		}
		if s.deps.OnMediaFrame != nil {
			s.deps.OnMediaFrame("outbound")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(frameDuration):
		}
	}

	markName := uuid.NewString()
	if !s.sendIfCurrent(item.gen, protocol.NewMarkFrame(s.streamSID, markName)) {
		return
	}
	s.awaitMark(ctx, markName, item.gen)

	if item.gen == s.currentGen() {
		s.machine.Post(convo.PlaybackDone{})
	}
}

// awaitMark blocks until the provider echoes the end-of-utterance marker,
// bounded so a lost mark never wedges the call.
func (s *Stream) awaitMark(ctx context.Context, name string, gen int) {
	deadline := time.After(markTimeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case echoed := <-s.marks:
			if echoed == name {
				return
			}
		}
		if gen != s.currentGen() {
			return
		}
	}
}

func (s *Stream) send(frame any) {
	select {
	case s.outbound <- frame:
	default:
		s.log.Warn("outbound queue full, dropping frame")
	}
}

func (s *Stream) currentGen() int {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.playGen
}

// sendIfCurrent enqueues a frame only while gen is still live. It holds genMu
// across the check and the send, so a barge-in's clear frame strictly follows
// the last frame of the audio it invalidates.
func (s *Stream) sendIfCurrent(gen int, frame any) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != s.playGen {
		return false
	}
	s.send(frame)
	return true
}

func (s *Stream) postHangup(reason string) {
	if s.machine != nil {
		s.machine.Post(convo.HangupEvent{Reason: reason})
	}
}

func (s *Stream) teardown() {
	if s.asr != nil {
		_ = s.asr.Close()
	}
	s.Hangup()
	if s.deps.OnCallEvent != nil && s.callSID != "" {
		s.deps.OnCallEvent("stream_closed")
	}
}

// splitFrames chops a buffer into fixed-size playback frames; the final
// partial frame is kept as-is.
func splitFrames(buf []byte, size int) [][]byte {
	if size <= 0 || len(buf) == 0 {
		return nil
	}
	frames := make([][]byte, 0, (len(buf)+size-1)/size)
	for len(buf) > size {
		frames = append(frames, buf[:size])
		buf = buf[size:]
	}
	frames = append(frames, buf)
	return frames
}
