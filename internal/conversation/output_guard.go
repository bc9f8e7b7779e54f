package conversation

import (
	"regexp"
	"strings"
)

// OutputGuardResult contains the result of scanning an outbound reply.
type OutputGuardResult struct {
	// Leaked is true if the reply contains information that must not be sent.
	Leaked bool
	// Reasons lists the detection signals that fired.
	Reasons []string
	// Sanitized is the cleaned reply, or empty when the reply must be dropped.
	Sanitized string
}

type outputLeakPattern struct {
	re     *regexp.Regexp
	reason string
	block  bool // if false the sentence is stripped instead
}

var outputLeakPatterns = []outputLeakPattern{
	// instruction leaks
	{regexp.MustCompile(`(?i)(meu|minhas?)\s+(prompt|instruç(ão|ões)|regras)\s+(é|são|diz|dizem|mandam)`), "leak:instructions_disclosure", true},
	{regexp.MustCompile(`(?i)fui (programad[ao]|instruíd[ao]|configurad[ao]) para`), "leak:programming_disclosure", true},
	{regexp.MustCompile(`(?i)my (system\s+)?(prompt|instructions?)\s+(is|are|says|tells)`), "leak:system_prompt_disclosure", true},

	// AI identity
	{regexp.MustCompile(`(?i)\b(sou|I'?m|I am)\s+(uma?|an?)\s+(IA|AI|inteligência artificial|modelo de linguagem|language model|chatbot|robô)\b`), "leak:ai_identity", false},
	{regexp.MustCompile(`(?i)(baseado no|baseada no|powered by|built on|usando o)\s+(GPT|OpenAI|ChatGPT|Claude)`), "leak:tech_stack", true},

	// credentials and infrastructure
	{regexp.MustCompile(`(?i)(api[_\s]?key|apikey|secret[_\s]?key|access[_\s]?token|bearer\s+token|token)\s*[:=]\s*\S+`), "leak:credential", true},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}`), "leak:openai_key", true},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "leak:aws_key", true},
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|redis|rediss)://\S+`), "leak:database_url", true},
	{regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{2,5}`), "leak:ip_port", true},
	{regexp.MustCompile(`(?i)/webhooks/|/internal/|/message/sendText|/chat/sendPresence`), "leak:internal_path", true},

	// other customers
	{regexp.MustCompile(`(?i)outr[oa]s?\s+client[ea]s?\s+(tem|têm|marcou|marcaram|agendou)`), "leak:other_client_ref", true},
}

var aiIdentitySentence = regexp.MustCompile(`(?i)[^.!?\n]*\b(sou|I'?m|I am)\s+(uma?|an?)\s+(IA|AI|inteligência artificial|modelo de linguagem|language model|chatbot|robô)\b[^.!?\n]*[.!?]?\s*`)

var (
	markdownBold    = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	markdownHeader  = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	markdownBullets = regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]+`)
)

// ScanOutputForLeaks checks a reply for sensitive information.
func ScanOutputForLeaks(reply string) OutputGuardResult {
	if strings.TrimSpace(reply) == "" {
		return OutputGuardResult{Sanitized: reply}
	}

	var reasons []string
	shouldBlock := false
	for _, p := range outputLeakPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
			if p.block {
				shouldBlock = true
			}
		}
	}
	if len(reasons) == 0 {
		return OutputGuardResult{Sanitized: reply}
	}

	result := OutputGuardResult{Leaked: true, Reasons: reasons}
	if !shouldBlock {
		result.Sanitized = strings.TrimSpace(aiIdentitySentence.ReplaceAllString(reply, ""))
	}
	return result
}

// StripMarkdown removes formatting WhatsApp would render literally.
func StripMarkdown(reply string) string {
	out := markdownBold.ReplaceAllString(reply, "$1$2")
	out = markdownHeader.ReplaceAllString(out, "")
	out = markdownBullets.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
