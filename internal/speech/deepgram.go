package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type DeepgramConfig struct {
	APIKey    string
	WSBaseURL string
	Model     string
}

// DeepgramTranscriber streams audio to Deepgram's realtime listen endpoint
// over a websocket and surfaces interim/final transcript events.
type DeepgramTranscriber struct {
	cfg DeepgramConfig
}

func NewDeepgramTranscriber(cfg DeepgramConfig) *DeepgramTranscriber {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.deepgram.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "nova-2"
	}
	return &DeepgramTranscriber{cfg: cfg}
}

func (p *DeepgramTranscriber) Start(ctx context.Context, _ string, sampleRate int) (TranscriptStream, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + "/v1/listen")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model", p.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("endpointing", "300")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial asr websocket: %w", err)
	}

	events := make(chan Transcript, 256)
	s := &deepgramStream{conn: conn, events: events}
	go s.readLoop()
	return s, nil
}

type deepgramStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan Transcript
}

func (s *deepgramStream) SendAudio(_ context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *deepgramStream) Events() <-chan Transcript { return s.events }

func (s *deepgramStream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.writeMu.Unlock()

	var retErr error
	s.closeOnce.Do(func() {
		retErr = s.conn.Close()
	})
	return retErr
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// readLoop is the only sender on events and closes the channel when the
// socket goes away.
func (s *deepgramStream) readLoop() {
	defer close(s.events)
	defer func() {
		s.closeOnce.Do(func() { _ = s.conn.Close() })
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var res deepgramResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.Type != "Results" || len(res.Channel.Alternatives) == 0 {
			continue
		}
		alt := res.Channel.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		s.events <- Transcript{
			Text:       alt.Transcript,
			Final:      res.IsFinal,
			Confidence: alt.Confidence,
			Timestamp:  time.Now().UnixMilli(),
		}
	}
}
