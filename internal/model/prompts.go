// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/legal-responder/pkg/types"
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"pct":  func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}

// classifyPromptTmpl asks for the document kind and structured fields as a
// single JSON object.
var classifyPromptTmpl = template.Must(template.New("classify").Funcs(promptFuncs).Parse(`You are a legal document classifier and analyst. Read the document below and respond with one JSON object with these fields:

- kind: exactly one of "letter", "contract", "notice", "complaint", "response", "unknown"
  - letter: general legal correspondence, demand letters
  - contract: agreements, terms, amendments
  - notice: formal notices, warnings, announcements
  - complaint: complaints, grievances, court filings alleging wrongdoing
  - response: replies or counter-arguments to an earlier communication
  - unknown: none of the above
- parties: names of the people, companies and organisations involved, in order of first appearance
- issues: the key legal issues raised, one short statement each, in order of first appearance
- dates: date expressions that matter to the matter (deadlines, effective dates), as written
- summary: two or three sentences describing the document

Use empty arrays when nothing applies. Do not include any text outside the JSON object.

Example response:
{"kind": "letter", "parties": ["Acme Corp", "Jane Doe"], "issues": ["Unpaid invoice of $12,000"], "dates": ["March 1, 2026"], "summary": "Acme demands payment of an overdue invoice."}

Document:
{{.Text}}
`))

// toneInstructions is the enum-controlled tone variation of the draft prompt.
var toneInstructions = map[types.ResponseType]string{
	types.ResponseProfessional: "Write in a clear, courteous and businesslike tone. Be direct about positions while keeping the door open to resolution.",
	types.ResponseFormal:       "Write in a formal legal register. Use precise language, numbered paragraphs, and reserve all rights expressly.",
	types.ResponseConciliatory: "Write in a conciliatory tone. Acknowledge the other party's concerns, emphasise shared interests, and propose a practical path to settlement.",
	types.ResponseAssertive:    "Write in a firm, assertive tone. State the position unambiguously, reject unsupported claims, and set clear deadlines for the other party.",
}

// ToneInstruction returns the drafting instruction for tone.
func ToneInstruction(tone types.ResponseType) (string, error) {
	s, ok := toneInstructions[tone]
	if !ok {
		return "", &types.InvalidQueryError{Reason: fmt.Sprintf("unknown response type %q", tone)}
	}
	return s, nil
}

var draftPromptTmpl = template.Must(template.New("draft").Funcs(promptFuncs).Parse(`You are a legal response writer. Draft a response to the document summarised in the case brief below.

Tone ({{.Tone}}): {{.ToneInstruction}}

The response must:
- address every issue in the brief, most important first
- refer to the precedents where they support a position
- close with clear next steps

Case brief:
Kind: {{.Brief.Kind}}
Summary: {{.Brief.Summary}}
Parties: {{join .Brief.Parties "; "}}
Dates: {{join .Brief.Dates "; "}}
Issues (ranked):
{{range $i, $issue := .Brief.Issues}}{{inc $i}}. {{$issue}}
{{end}}
Precedents:
{{range $i, $p := .Precedents}}{{inc $i}}. {{$p.Filename}} (relevance {{pct $p.Score}}): {{$p.Rationale}}
   {{$p.Text}}
{{else}}None on file.
{{end}}
Respond with the text of the response only.
`))

var scorePromptTmpl = template.Must(template.New("score").Funcs(promptFuncs).Parse(`Evaluate the quality of a drafted legal response. Respond with one JSON object:

- confidence: a float between 0.0 and 1.0 for how well the response addresses the issues and how sound it is
- reasoning: one or two sentences explaining the score
- key_points: the key points the response makes, one short phrase each

Do not include any text outside the JSON object.

Document issues: {{join .Brief.Issues "; "}}
Document parties: {{join .Brief.Parties "; "}}
Requested tone: {{.Tone}}
Precedents cited: {{len .Precedents}}

Response:
{{.Draft}}
`))

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func classifyPrompt(text string) (string, error) {
	return renderPrompt(classifyPromptTmpl, struct{ Text string }{Text: text})
}

func draftPrompt(req DraftRequest) (string, error) {
	inst, err := ToneInstruction(req.Tone)
	if err != nil {
		return "", err
	}
	return renderPrompt(draftPromptTmpl, struct {
		DraftRequest
		ToneInstruction string
	}{req, inst})
}

func scorePrompt(req ScoreRequest) (string, error) {
	return renderPrompt(scorePromptTmpl, req)
}

// completeFunc sends one prompt and returns the model's text. wantJSON asks
// the provider for a JSON-only reply where it supports that.
type completeFunc func(ctx context.Context, prompt string, wantJSON bool) (string, error)

// promptClassify, promptDraft and promptScore implement Capability on top
// of a provider's completion call.
func promptClassify(ctx context.Context, complete completeFunc, text string) (Classification, error) {
	prompt, err := classifyPrompt(text)
	if err != nil {
		return Classification{}, err
	}
	out, err := complete(ctx, prompt, true)
	if err != nil {
		return Classification{}, err
	}
	var c Classification
	if err := decodeJSON(out, &c); err != nil {
		return Classification{}, err
	}
	return c, nil
}

func promptDraft(ctx context.Context, complete completeFunc, req DraftRequest) (string, error) {
	prompt, err := draftPrompt(req)
	if err != nil {
		return "", err
	}
	out, err := complete(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("model returned an empty draft")
	}
	return out, nil
}

func promptScore(ctx context.Context, complete completeFunc, req ScoreRequest) (Assessment, error) {
	prompt, err := scorePrompt(req)
	if err != nil {
		return Assessment{}, err
	}
	out, err := complete(ctx, prompt, true)
	if err != nil {
		return Assessment{}, err
	}
	return parseAssessment(out)
}
