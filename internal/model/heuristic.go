// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// HeuristicBackend is an offline, deterministic Capability. It classifies by
// weighted keyword cues, extracts fields with patterns, drafts from per-tone
// letter templates and scores a draft by how many brief issues it covers.
type HeuristicBackend struct{}

// NewHeuristicBackend returns the offline backend.
func NewHeuristicBackend() *HeuristicBackend { return &HeuristicBackend{} }

const (
	headWindow   = 300
	headWeight   = 3
	maxParties   = 10
	maxIssues    = 8
	maxIssueLen  = 240
	maxSummary   = 400
	shortDraftWd = 40
)

type kindCue struct {
	kind   types.DocumentKind
	weight int
	cues   []*regexp.Regexp
}

func cuePatterns(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(phrases))
	for i, p := range phrases {
		expr := `(?i)\b` + regexp.QuoteMeta(p)
		if last := rune(p[len(p)-1]); unicode.IsLetter(last) || unicode.IsDigit(last) {
			expr += `\b`
		}
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// kindCues is ordered; on equal scores the earlier kind wins.
var kindCues = []kindCue{
	{types.KindComplaint, 2, cuePatterns("complaint", "plaintiff", "defendant", "alleges", "cause of action",
		"grievance", "relief sought", "jurisdiction", "court")},
	{types.KindContract, 1, cuePatterns("agreement", "whereas", "hereby agree", "terms and conditions",
		"in witness whereof", "effective date", "governing law", "the parties agree", "shall")},
	{types.KindResponse, 2, cuePatterns("in response to", "in reply to", "your letter dated", "we deny",
		"we reject", "your correspondence", "further to your")},
	{types.KindNotice, 2, cuePatterns("notice is hereby given", "hereby notified", "take notice",
		"cease and desist", "notice of", "notification")},
	{types.KindLetter, 1, cuePatterns("dear", "sincerely", "yours faithfully", "yours truly",
		"kind regards", "re:")},
}

func classifyKind(text string) types.DocumentKind {
	head := text[:min(len(text), headWindow)]
	best, bestScore := types.KindUnknown, 0
	for _, kc := range kindCues {
		score := 0
		for _, re := range kc.cues {
			score += len(re.FindAllStringIndex(text, -1)) * kc.weight
			score += len(re.FindAllStringIndex(head, -1)) * kc.weight * (headWeight - 1)
		}
		if score > bestScore {
			best, bestScore = kc.kind, score
		}
	}
	return best
}

var (
	orgRe = regexp.MustCompile(`\b((?:[A-Z][\w&'.-]* +){0,4}[A-Z][\w&'.-]*),? +` +
		`(?:Corporation|Corp\b\.?|Company|Co\.|Incorporated|Inc\b\.?|Limited|Ltd\b\.?|LLC|LLP|PLC|GmbH)`)
	personRe = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}`)
	roleRe   = regexp.MustCompile(`(?m)^\s*(?:From|To|Plaintiff|Defendant|Landlord|Tenant|Buyer|Seller|` +
		`Employer|Employee|Claimant|Respondent|Client)\s*:\s*([^,\n]+)`)
	dateRe = regexp.MustCompile(`\b(?:` +
		`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+(?:January|February|March|April|May|June|July|August|September|October|November|December),?\s+\d{4}` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}/\d{1,2}/\d{2,4})\b`)
)

var leadingNoise = map[string]bool{
	"The": true, "Dear": true, "Between": true, "And": true, "To": true, "From": true,
	"Re": true, "By": true, "Of": true, "With": true, "Our": true, "Your": true, "Client": true,
	"Plaintiff": true, "Defendant": true, "Claimant": true, "Respondent": true,
}

type found struct {
	pos  int
	text string
}

func extractParties(text string) []string {
	var hits []found
	for _, m := range orgRe.FindAllStringIndex(text, -1) {
		name := text[m[0]:m[1]]
		start := m[0]
		for {
			first, rest, ok := strings.Cut(name, " ")
			if !ok || !leadingNoise[first] {
				break
			}
			start += len(first) + 1
			name = strings.TrimLeft(rest, " ")
		}
		hits = append(hits, found{start, name})
	}
	for _, m := range personRe.FindAllStringIndex(text, -1) {
		hits = append(hits, found{m[0], text[m[0]:m[1]]})
	}
	for _, m := range roleRe.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, found{m[2], text[m[2]:m[3]]})
	}
	return orderedUnique(hits, maxParties)
}

func extractDates(text string) []string {
	var hits []found
	for _, m := range dateRe.FindAllStringIndex(text, -1) {
		hits = append(hits, found{m[0], text[m[0]:m[1]]})
	}
	return orderedUnique(hits, 0)
}

// orderedUnique sorts hits by position and drops case-insensitive repeats.
// limit <= 0 keeps everything.
func orderedUnique(hits []found, limit int) []string {
	slices.SortStableFunc(hits, func(a, b found) int { return cmp.Compare(a.pos, b.pos) })
	seen := make(map[string]bool)
	out := []string{}
	for _, h := range hits {
		v := strings.Join(strings.Fields(strings.TrimRight(h.text, " ,;:")), " ")
		key := strings.ToLower(strings.TrimRight(v, "."))
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// issueStems mark a sentence as raising a legal issue.
var issueStems = []string{
	"breach", "fail", "overdue", "outstanding", "unpaid", "terminat", "dispute", "demand",
	"damage", "liab", "violat", "default", "infring", "neglig", "refund", "penalt",
	"compensat", "withh", "defect", "arrears", "misrepresent",
}

func raisesIssue(sentence string) bool {
	for _, tok := range embed.Tokenize(sentence) {
		for _, stem := range issueStems {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
	}
	return false
}

func extractIssues(text string) []string {
	var hits []found
	for _, s := range sentences(text) {
		if raisesIssue(s.text) {
			hits = append(hits, found{s.pos, truncateWords(s.text, maxIssueLen)})
		}
	}
	return orderedUnique(hits, maxIssues)
}

// sentences splits text at terminal punctuation followed by whitespace and
// at blank lines. Whitespace inside a sentence is collapsed.
func sentences(text string) []found {
	var out []found
	start := 0
	flush := func(end int) {
		s := strings.Join(strings.Fields(text[start:end]), " ")
		if s != "" {
			out = append(out, found{start, s})
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || isSpace(text[i+1])):
			flush(i + 1)
		case c == '\n' && i+1 < len(text) && text[i+1] == '\n':
			flush(i)
		}
	}
	flush(len(text))
	return out
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\t' || b == '\r' }

// truncateWords cuts s to at most n bytes at a word boundary.
func truncateWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return strings.TrimRight(s[:cut], " ,;:") + "..."
}

func summarize(text string) string {
	ss := sentences(text)
	var parts []string
	for _, s := range ss {
		parts = append(parts, s.text)
		if len(parts) == 2 {
			break
		}
	}
	return truncateWords(strings.Join(parts, " "), maxSummary)
}

// Classify applies the keyword and pattern rules to text.
func (h *HeuristicBackend) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	return Classification{
		Kind:    string(classifyKind(text)),
		Parties: extractParties(text),
		Issues:  extractIssues(text),
		Dates:   extractDates(text),
		Summary: summarize(text),
	}, nil
}

type toneStyle struct {
	Opening        string
	Stance         string
	PrecedentIntro string
	Closing        string
	SignOff        string
}

var toneStyles = map[types.ResponseType]toneStyle{
	types.ResponseProfessional: {
		Opening:        "Thank you for your correspondence. We have reviewed the matters it raises and set out our position below.",
		Stance:         "we are reviewing the position carefully and will provide supporting records where relevant.",
		PrecedentIntro: "In forming this view we have considered comparable matters on file:",
		Closing:        "We trust this clarifies our position and remain available to discuss the next steps.",
		SignOff:        "Kind regards,",
	},
	types.ResponseFormal: {
		Opening:        "We acknowledge receipt of the above document and respond to it as follows.",
		Stance:         "all rights are expressly reserved and full particulars are requested in support of this assertion.",
		PrecedentIntro: "Reference is made to the following comparable matters:",
		Closing:        "Nothing in this letter constitutes an admission of liability, and all rights are reserved.",
		SignOff:        "Yours faithfully,",
	},
	types.ResponseConciliatory: {
		Opening:        "Thank you for raising these concerns. We appreciate the opportunity to address them and hope to find a solution that works for everyone.",
		Stance:         "we understand the concern and would welcome the opportunity to resolve it by agreement.",
		PrecedentIntro: "Similar matters have been resolved constructively before, for example:",
		Closing:        "We propose a meeting at your convenience to agree a way forward.",
		SignOff:        "With best regards,",
	},
	types.ResponseAssertive: {
		Opening:        "We write in response to your document, the contents of which are disputed.",
		Stance:         "this is rejected and we require that it be withdrawn within fourteen days.",
		PrecedentIntro: "Our position is supported by the following matters:",
		Closing:        "Should you fail to respond within fourteen days, we will take such further steps as are necessary without further notice.",
		SignOff:        "Yours sincerely,",
	},
}

var letterTmpl = template.Must(template.New("letter").Funcs(promptFuncs).Parse(`Re: {{.Subject}}

Dear {{.Addressee}},

{{.Style.Opening}}
{{range $i, $issue := .Issues}}
{{inc $i}}. As to "{{$issue}}", {{$.Style.Stance}}
{{else}}
We have reviewed the matters raised and have no further points to add at this stage.
{{end}}{{if .Precedents}}
{{.Style.PrecedentIntro}}
{{range .Precedents}}- {{.Filename}}: {{.Rationale}}
{{end}}{{end}}
{{.Style.Closing}}

{{.Style.SignOff}}
`))

// Draft fills the letter template for req.Tone.
func (h *HeuristicBackend) Draft(ctx context.Context, req DraftRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	style, ok := toneStyles[req.Tone]
	if !ok {
		return "", &types.InvalidQueryError{Reason: fmt.Sprintf("unknown response type %q", req.Tone)}
	}

	subject := req.Brief.Filename
	if subject == "" {
		subject = "your " + string(req.Brief.Kind)
	}
	addressee := "Sir or Madam"
	if len(req.Brief.Parties) > 0 {
		addressee = req.Brief.Parties[0]
	}
	issues := make([]string, len(req.Brief.Issues))
	for i, is := range req.Brief.Issues {
		issues[i] = strings.TrimRight(is, ".;: ")
	}

	text, err := renderPrompt(letterTmpl, struct {
		Subject    string
		Addressee  string
		Style      toneStyle
		Issues     []string
		Precedents []Precedent
	}{subject, addressee, style, issues, req.Precedents})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Score measures the share of brief issues the draft covers. An issue is
// covered when at least half of its content words appear in the draft.
func (h *HeuristicBackend) Score(ctx context.Context, req ScoreRequest) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	draftWords := make(map[string]bool)
	for _, tok := range embed.Tokenize(req.Draft) {
		draftWords[tok] = true
	}

	keyPoints := []string{}
	for _, issue := range req.Brief.Issues {
		if covers(draftWords, issue) {
			keyPoints = append(keyPoints, truncateWords(issue, 80))
		}
	}

	confidence := 0.5
	if n := len(req.Brief.Issues); n > 0 {
		confidence = float64(len(keyPoints)) / float64(n)
	}
	if len(strings.Fields(req.Draft)) < shortDraftWd {
		confidence /= 2
	}

	return Assessment{
		Confidence: confidence,
		Reasoning: fmt.Sprintf("The draft addresses %d of %d issues in a %s tone and cites %d precedents.",
			len(keyPoints), len(req.Brief.Issues), req.Tone, len(req.Precedents)),
		KeyPoints: keyPoints,
	}, nil
}

func covers(words map[string]bool, issue string) bool {
	toks := embed.Tokenize(issue)
	if len(toks) == 0 {
		return false
	}
	hit := 0
	for _, t := range toks {
		if words[t] {
			hit++
		}
	}
	return hit*2 >= len(toks)
}
