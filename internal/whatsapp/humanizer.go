package whatsapp

import (
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// MaxChunkChars is the soft cap for a single outbound message.
const MaxChunkChars = 200

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`[.!?]\s+`)
)

// SplitReply breaks a reply into message-sized chunks: paragraphs first, then
// line groups, then sentences. A single sentence longer than MaxChunkChars is
// kept whole. Non-empty input always yields at least one chunk.
func SplitReply(text string) []string {
	var chunks []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if charCount(para) <= MaxChunkChars {
			chunks = append(chunks, para)
			continue
		}
		if strings.Contains(para, "\n") {
			chunks = append(chunks, groupLines(splitLines(para))...)
			continue
		}
		chunks = append(chunks, groupUnits(splitSentences(para), " ")...)
	}
	if len(chunks) == 0 && text != "" {
		return []string{text}
	}
	return chunks
}

func splitLines(para string) []string {
	var out []string
	for _, line := range strings.Split(para, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// groupLines packs lines into chunks. A line over MaxChunkChars is split into
// sentences and emitted on its own.
func groupLines(lines []string) []string {
	var (
		groups  []string
		pending []string
	)
	for _, line := range lines {
		if charCount(line) <= MaxChunkChars {
			pending = append(pending, line)
			continue
		}
		groups = append(groups, groupUnits(pending, "\n")...)
		pending = nil
		groups = append(groups, groupUnits(splitSentences(line), " ")...)
	}
	return append(groups, groupUnits(pending, "\n")...)
}

func splitSentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(para, -1) {
		// keep the punctuation, drop the trailing whitespace
		out = append(out, strings.TrimSpace(para[last:loc[0]+1]))
		last = loc[1]
	}
	if tail := strings.TrimSpace(para[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// groupUnits greedily packs units into groups no longer than MaxChunkChars.
func groupUnits(units []string, sep string) []string {
	var (
		groups  []string
		current strings.Builder
	)
	for _, u := range units {
		if current.Len() > 0 && charCount(current.String())+len([]rune(sep))+charCount(u) > MaxChunkChars {
			groups = append(groups, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(u)
	}
	if current.Len() > 0 {
		groups = append(groups, current.String())
	}
	return groups
}

func charCount(s string) int {
	return len([]rune(s))
}

// Pacing controls the simulated typing cadence between chunks.
type Pacing struct {
	PerChar    time.Duration
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Jitter     time.Duration
	FirstMin   time.Duration
	FirstMax   time.Duration
	RandInt63n func(n int64) int64
}

// DefaultPacing mirrors a person typing on a phone.
func DefaultPacing() Pacing {
	return Pacing{
		PerChar:    50 * time.Millisecond,
		MinDelay:   1500 * time.Millisecond,
		MaxDelay:   4000 * time.Millisecond,
		Jitter:     300 * time.Millisecond,
		FirstMin:   800 * time.Millisecond,
		FirstMax:   1300 * time.Millisecond,
		RandInt63n: rand.Int63n,
	}
}

// FirstDelay is the pause before the first chunk.
func (p Pacing) FirstDelay() time.Duration {
	span := p.FirstMax - p.FirstMin
	if span <= 0 {
		return p.FirstMin
	}
	return p.FirstMin + time.Duration(p.randInt63n(int64(span)+1))
}

// TypingDelay is clamp(len*PerChar, MinDelay, MaxDelay) plus up to ±Jitter.
func (p Pacing) TypingDelay(chunk string) time.Duration {
	d := time.Duration(charCount(chunk)) * p.PerChar
	if d < p.MinDelay {
		d = p.MinDelay
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(p.randInt63n(int64(2*p.Jitter)+1)) - p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (p Pacing) randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if p.RandInt63n == nil {
		return rand.Int63n(n)
	}
	return p.RandInt63n(n)
}
