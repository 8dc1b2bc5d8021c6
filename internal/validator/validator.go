// Package validator implements the response validator & sanitizer from spec
// §4.8: the ordered sanitization passes, santai-mode truncation for
// greeting/casual responses, the contact-append rule for business/emergency
// responses, and the query-classification rules that select between them.
package validator

import (
	"regexp"
	"strings"
)

// QueryClass is the closed classification tag set from spec §4.8.
type QueryClass string

const (
	ClassGreeting  QueryClass = "greeting"
	ClassCasual    QueryClass = "casual"
	ClassBusiness  QueryClass = "business"
	ClassEmergency QueryClass = "emergency"
)

// DefaultMaxWords bounds santai-mode truncation.
const DefaultMaxWords = 30

var greetingPhrases = []string{"ciao", "hi", "hello", "hola", "salve", "hey", "halo", "selamat pagi", "selamat siang"}
var emergencyKeywords = []string{"urgent", "urgente", "help", "aiuto", "lost", "stolen", "expired", "deportation"}
var casualPatterns = []string{"how are you", "who are you", "come stai", "chi sei", "apa kabar", "siapa kamu"}
var businessKeywords = []string{"visa", "kitas", "kitap", "pt pma", "nib", "npwp", "tax", "pajak", "kbli", "company", "perusahaan", "license", "izin"}

// ClassifyQuery implements spec §4.8's query classification rules, checked
// in priority order: emergency, greeting, casual (only absent any business
// keyword), else business.
func ClassifyQuery(query string) QueryClass {
	lower := strings.ToLower(strings.TrimSpace(query))

	if containsAny(lower, emergencyKeywords) {
		return ClassEmergency
	}
	if isNearExactGreeting(lower) {
		return ClassGreeting
	}
	if containsAny(lower, casualPatterns) && !containsAny(lower, businessKeywords) {
		return ClassCasual
	}
	return ClassBusiness
}

func isNearExactGreeting(lower string) bool {
	trimmed := strings.Trim(lower, " !.?")
	for _, g := range greetingPhrases {
		if trimmed == g {
			return true
		}
		if len(trimmed) <= len(g)+3 && strings.HasPrefix(trimmed, g) {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Sanitization patterns, applied in the exact order from spec §4.8.
var (
	bracketedPlaceholder = regexp.MustCompile(`\[(PRICE|MANDATORY|OPTIONAL)\]`)
	leakageLinePrefixes  = regexp.MustCompile(`(?m)^(User:|Assistant:|Context:|Context from knowledge base:|THOUGHT:|ACTION:|OBSERVATION:|Final Answer:).*$`)
	metaCommentary       = regexp.MustCompile(`\([^()]*\b(for this scenario|per questo scenario)\b[^()]*\)`)
	sectionHeaders       = regexp.MustCompile(`(?m)^(Simplified Explanation|Requirements:|Deviation from Requirement:|Contesto per la risposta:|\(from KB source\))\s*$`)
	markdownHeaderTitle  = regexp.MustCompile(`^#{1,6}\s*\*\*(.+?)\*\*\s*$`)
	threeOrMoreNewlines  = regexp.MustCompile(`\n{3,}`)
)

// apologyPatterns maps a language-agnostic "no documents / can't help" regex
// to the IT/EN/ID rewrite target, per spec §4.8 rule 7.
var apologyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i (don't|do not) have (any )?(information|documents)`),
	regexp.MustCompile(`(?i)i('m| am) (sorry,? )?(unable|not able) to (help|assist)`),
	regexp.MustCompile(`(?i)non ho (informazioni|documenti)`),
	regexp.MustCompile(`(?i)mi dispiace,? non posso aiutar`),
	regexp.MustCompile(`(?i)saya tidak (memiliki|punya) (informasi|dokumen)`),
	regexp.MustCompile(`(?i)maaf,? saya tidak (bisa|dapat) membantu`),
}

const apologyRewrite = "Could you rephrase the question? I want to help you better."

// Sanitize applies the ordered sanitization rules from spec §4.8.
func Sanitize(text string) string {
	out := text

	out = bracketedPlaceholder.ReplaceAllString(out, "")
	out = leakageLinePrefixes.ReplaceAllString(out, "")
	out = metaCommentary.ReplaceAllString(out, "")
	out = sectionHeaders.ReplaceAllString(out, "")
	out = replaceLineByLine(out, markdownHeaderTitle)
	out = threeOrMoreNewlines.ReplaceAllString(out, "\n\n")

	for _, p := range apologyPatterns {
		if p.MatchString(out) {
			out = p.ReplaceAllString(out, apologyRewrite)
		}
	}

	return strings.TrimSpace(out)
}

func replaceLineByLine(text string, re *regexp.Regexp) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			lines[i] = m[1]
		}
	}
	return strings.Join(lines, "\n")
}

var sentenceSplit = regexp.MustCompile(`[^.!?]*[.!?]+`)

// SantaiTruncate implements santai-mode truncation for greeting/casual
// classifications: limit to 3 sentences, then if still over maxWords,
// truncate at the last sentence boundary <= maxWords and append "..." when
// the cut falls mid-sentence. maxWords <= 0 uses DefaultMaxWords.
func SantaiTruncate(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	sentences := sentenceSplit.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	limited := strings.TrimSpace(strings.Join(sentences, ""))

	words := strings.Fields(limited)
	if len(words) <= maxWords {
		return limited
	}

	truncated := strings.Join(words[:maxWords], " ")
	if cut := lastSentenceBoundary(truncated); cut != "" {
		return cut
	}
	return truncated + "..."
}

func lastSentenceBoundary(text string) string {
	matches := sentenceSplit.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return ""
	}
	last := matches[len(matches)-1]
	return strings.TrimSpace(text[:last[1]])
}

// ContactSentence is the default contact line appended by AppendContact when
// no override is supplied. Deployments typically override via
// WithContactSentence to localize or update the channel.
const ContactSentence = "For urgent matters, contact our team directly via WhatsApp at +62 859-0436-9574."

// AppendContact implements the contact-append rule from spec §4.8: for
// business/emergency classifications, appends contact when the response
// contains neither "+62" nor "whatsapp" (case-insensitive).
func AppendContact(text string, class QueryClass, contactSentence string) string {
	if class != ClassBusiness && class != ClassEmergency {
		return text
	}
	if contactSentence == "" {
		contactSentence = ContactSentence
	}
	lower := strings.ToLower(text)
	if strings.Contains(text, "+62") || strings.Contains(lower, "whatsapp") {
		return text
	}
	return strings.TrimRight(text, " \n") + "\n\n" + contactSentence
}

// Validate runs the full §4.8 pipeline on one turn: classify the original
// query, sanitize the model's response text, then apply the
// classification-specific truncation or contact-append to the sanitized
// response.
func Validate(query, responseText, contactSentence string) (result string, class QueryClass) {
	clean := Sanitize(responseText)
	class = ClassifyQuery(query)

	switch class {
	case ClassGreeting, ClassCasual:
		return SantaiTruncate(clean, DefaultMaxWords), class
	case ClassBusiness, ClassEmergency:
		return AppendContact(clean, class, contactSentence), class
	default:
		return clean, class
	}
}
