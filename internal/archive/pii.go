package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// +55 11 98888-7777, (11) 98888-7777, 11988887777
	phoneRe = regexp.MustCompile(`(\+?\d{2}[\s.-]?)?\(?\d{2}\)?[\s.-]?9?\d{4}[\s.-]?\d{4}`)
	cpfRe   = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
)

// HashPhone hashes the digits of phone, so formatting differences between
// the webhook and the back-office map to the same key.
func HashPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	h := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(h[:])
}

// ScrubPII masks e-mails, CPFs and phone numbers. CPF runs before phone since
// an unpunctuated CPF also looks like a phone number. Names stay readable.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = cpfRe.ReplaceAllString(text, "[CPF]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}

// ScrubMessages returns a scrubbed copy of msgs; the input is left untouched.
func ScrubMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Content = ScrubPII(m.Content)
		out[i] = m
	}
	return out
}
