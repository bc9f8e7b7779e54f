// Package whatsapp adapts the WhatsApp provider: inbound webhook normalization,
// the outbound HTTP transport, and humanized reply dispatch.
package whatsapp

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Skip reasons reported for webhook payloads that carry nothing to answer.
const (
	SkipBadJSON   = "bad_json"
	SkipNoMessage = "no_message"
	SkipFromMe    = "from_me"
)

// InboundEvent is the canonical shape of a customer message.
type InboundEvent struct {
	TenantID string
	Phone    string
	Text     string
}

// NormalizeResult is either an Event or a SkipReason, never both.
type NormalizeResult struct {
	Event      InboundEvent
	SkipReason string
}

// Skipped reports whether the payload should be acknowledged without processing.
func (r NormalizeResult) Skipped() bool {
	return r.SkipReason != ""
}

type extractor func(doc gjson.Result) (string, bool)

func stringAt(path string) extractor {
	return func(doc gjson.Result) (string, bool) {
		v := doc.Get(path)
		if !v.Exists() || v.Type != gjson.String {
			return "", false
		}
		s := strings.TrimSpace(v.String())
		return s, s != ""
	}
}

func jidAt(path string) extractor {
	return func(doc gjson.Result) (string, bool) {
		raw, ok := stringAt(path)(doc)
		if !ok {
			return "", false
		}
		if strings.HasSuffix(raw, "@g.us") || strings.HasPrefix(raw, "status@") {
			return "", false
		}
		return stripJID(raw), true
	}
}

var phoneExtractors = []extractor{
	stringAt("phone"),
	stringAt("from"),
	stringAt("data.from"),
	jidAt("data.key.remoteJid"),
}

var textExtractors = []extractor{
	stringAt("message"),
	stringAt("text"),
	stringAt("data.message.conversation"),
	stringAt("data.message.extendedTextMessage.text"),
}

var fromMePaths = []string{"fromMe", "data.fromMe", "data.key.fromMe"}

func firstMatch(doc gjson.Result, extractors []extractor) (string, bool) {
	for _, ex := range extractors {
		if v, ok := ex(doc); ok {
			return v, true
		}
	}
	return "", false
}

// Normalize turns an arbitrary provider payload into an InboundEvent. Garbage
// bodies are skipped rather than rejected so the provider never retries them.
func Normalize(tenantID string, body []byte) NormalizeResult {
	if !gjson.ValidBytes(body) {
		return NormalizeResult{SkipReason: SkipBadJSON}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return NormalizeResult{SkipReason: SkipBadJSON}
	}

	for _, path := range fromMePaths {
		if doc.Get(path).Bool() {
			return NormalizeResult{SkipReason: SkipFromMe}
		}
	}

	phone, ok := firstMatch(doc, phoneExtractors)
	if !ok {
		return NormalizeResult{SkipReason: SkipNoMessage}
	}
	phone = NormalizeE164(stripJID(phone))
	if phone == "" {
		return NormalizeResult{SkipReason: SkipNoMessage}
	}
	text, ok := firstMatch(doc, textExtractors)
	if !ok {
		return NormalizeResult{SkipReason: SkipNoMessage}
	}

	return NormalizeResult{Event: InboundEvent{
		TenantID: tenantID,
		Phone:    phone,
		Text:     text,
	}}
}

// stripJID drops the "@server" part and any ":device" suffix of a WhatsApp JID.
func stripJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.IndexByte(jid, ':'); i >= 0 {
		jid = jid[:i]
	}
	return jid
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	return "+" + digits.String()
}

// TransportNumber is the digits-only form the provider expects in "number".
func TransportNumber(e164 string) string {
	return strings.TrimPrefix(NormalizeE164(e164), "+")
}
