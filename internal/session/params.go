package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// PendingCalls stages call parameters between the voice webhook and the media
// stream connecting. Entries expire on their own if the stream never shows up.
type PendingCalls struct {
	cache *gocache.Cache
}

func NewPendingCalls(ttl time.Duration) *PendingCalls {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &PendingCalls{cache: gocache.New(ttl, ttl)}
}

func (p *PendingCalls) Put(callSID string, params Params) {
	p.cache.SetDefault(callSID, params)
}

// PutIfAbsent stages params only when the call SID is not already staged.
// The external handoff API uses it so a webhook-staged call wins.
func (p *PendingCalls) PutIfAbsent(callSID string, params Params) bool {
	return p.cache.Add(callSID, params, gocache.DefaultExpiration) == nil
}

// Take removes and returns the staged params. A media stream binds at most
// once; a second start frame for the same SID gets nothing.
func (p *PendingCalls) Take(callSID string) (Params, bool) {
	v, ok := p.cache.Get(callSID)
	if !ok {
		return Params{}, false
	}
	p.cache.Delete(callSID)
	params, ok := v.(Params)
	return params, ok
}
