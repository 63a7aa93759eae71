package convo

// DefaultAckPhrases is the rotating filler set spoken while generation is
// still in flight.
var DefaultAckPhrases = []string{
	"Okay.",
	"Got it.",
	"Mm-hmm.",
	"Sure, one moment.",
	"Alright.",
	"I see.",
}

// ackPicker hands out phrases without repeating any until the whole set has
// been used, then resets.
type ackPicker struct {
	phrases []string
	used    []bool
	last    int
}

func newAckPicker(phrases []string) *ackPicker {
	if len(phrases) == 0 {
		phrases = DefaultAckPhrases
	}
	return &ackPicker{
		phrases: phrases,
		used:    make([]bool, len(phrases)),
		last:    -1,
	}
}

func (p *ackPicker) next() string {
	if p.allUsed() {
		p.used = make([]bool, len(p.phrases))
	}
	idx := p.last
	for range p.phrases {
		idx = (idx + 1) % len(p.phrases)
		if !p.used[idx] {
			break
		}
	}
	p.used[idx] = true
	p.last = idx
	return p.phrases[idx]
}

func (p *ackPicker) allUsed() bool {
	for _, u := range p.used {
		if !u {
			return false
		}
	}
	return true
}
