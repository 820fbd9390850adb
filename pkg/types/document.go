// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the legal-responder engine:
// documents and their chunks, search results, generated responses, and the
// configuration and error types shared by every stage.
package types

import (
	"strconv"
	"strings"
	"time"
)

// DocumentKind is the closed taxonomy of legal document kinds.
type DocumentKind string

const (
	KindLetter    DocumentKind = "letter"
	KindContract  DocumentKind = "contract"
	KindNotice    DocumentKind = "notice"
	KindComplaint DocumentKind = "complaint"
	KindResponse  DocumentKind = "response"
	KindUnknown   DocumentKind = "unknown"
)

// DocumentKinds lists every valid DocumentKind in display order.
var DocumentKinds = []DocumentKind{
	KindLetter, KindContract, KindNotice, KindComplaint, KindResponse, KindUnknown,
}

// Valid reports whether k is a member of the closed set.
func (k DocumentKind) Valid() bool {
	for _, known := range DocumentKinds {
		if k == known {
			return true
		}
	}
	return false
}

// kindAliases maps labels that models commonly return onto the closed set.
var kindAliases = map[string]DocumentKind{
	"legal_letter":   KindLetter,
	"legal letter":   KindLetter,
	"correspondence": KindLetter,
	"demand_letter":  KindLetter,
	"agreement":      KindContract,
	"legal_notice":   KindNotice,
	"grievance":      KindComplaint,
	"petition":       KindComplaint,
	"reply":          KindResponse,
	"answer":         KindResponse,
	"legal_response": KindResponse,
	"other":          KindUnknown,
	"unclassified":   KindUnknown,
}

// ParseDocumentKind maps a free-form label onto the closed set. Labels that
// match nothing map to KindUnknown; the result is never an open string.
func ParseDocumentKind(label string) DocumentKind {
	norm := strings.ToLower(strings.TrimSpace(label))
	norm = strings.Trim(norm, ".\"'`")
	if k := DocumentKind(norm); k.Valid() {
		return k
	}
	if k, ok := kindAliases[norm]; ok {
		return k
	}
	return KindUnknown
}

// PageSpan records where a PDF page begins and ends in the extracted text.
type PageSpan struct {
	// Page is the 1-based page number.
	Page int `json:"page" yaml:"page"`

	// Start is the byte offset of the first character of the page.
	Start int `json:"start" yaml:"start"`

	// End is the byte offset one past the last character of the page.
	End int `json:"end" yaml:"end"`
}

// ExtractedText is the output of the text extractor.
type ExtractedText struct {
	// Text is the full document text with pages joined in order.
	Text string `json:"text" yaml:"text"`

	// Pages maps each page to its offset range within Text.
	Pages []PageSpan `json:"pages" yaml:"pages"`
}

// Classification is the classifier's verdict on a document.
type Classification struct {
	Kind    DocumentKind `json:"kind" yaml:"kind"`
	Parties []string     `json:"parties" yaml:"parties"`
	Issues  []string     `json:"issues" yaml:"issues"`
	Dates   []string     `json:"dates" yaml:"dates"`
	Summary string       `json:"summary" yaml:"summary"`
}

// Document is an ingested legal PDF. Once classified it is immutable except
// for ResponseIDs, which grows each time a response is generated.
type Document struct {
	// ID is stable for identical PDF bytes.
	ID string `json:"id" yaml:"id"`

	// Filename is the source file name supplied by the caller.
	Filename string `json:"filename" yaml:"filename"`

	// ContentHash is the hex SHA-256 of the PDF bytes.
	ContentHash string `json:"content_hash" yaml:"content_hash"`

	// Text is the extracted raw text.
	Text string `json:"text" yaml:"text"`

	// Pages records page boundaries within Text.
	Pages []PageSpan `json:"pages" yaml:"pages"`

	// Kind is empty until the document has been classified.
	Kind DocumentKind `json:"kind" yaml:"kind"`

	// Parties lists party names in order of first appearance.
	Parties []string `json:"parties" yaml:"parties"`

	// Issues lists issue statements in order of first appearance.
	Issues []string `json:"issues" yaml:"issues"`

	// Dates lists date expressions found in the document.
	Dates []string `json:"dates" yaml:"dates"`

	// Summary is the classifier's free-text summary.
	Summary string `json:"summary" yaml:"summary"`

	// WordCount is the number of whitespace-separated words in Text.
	WordCount int `json:"word_count" yaml:"word_count"`

	// ChunkCount is the number of chunks indexed for the document.
	ChunkCount int `json:"chunk_count" yaml:"chunk_count"`

	// ResponseIDs links to generated responses, oldest first.
	ResponseIDs []string `json:"response_ids" yaml:"response_ids"`

	// CreatedAt is when the document was first processed.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// ClassifiedAt is zero until the document has been classified.
	ClassifiedAt time.Time `json:"classified_at" yaml:"classified_at"`
}

// IsClassified reports whether the document carries a classification.
func (d Document) IsClassified() bool {
	return d.Kind != "" && !d.ClassifiedAt.IsZero()
}

// ApplyClassification copies a classifier verdict onto the document.
func (d *Document) ApplyClassification(c Classification, at time.Time) {
	d.Kind = c.Kind
	d.Parties = c.Parties
	d.Issues = c.Issues
	d.Dates = c.Dates
	d.Summary = c.Summary
	d.ClassifiedAt = at
}

// ChunkMetadata is the filterable metadata stored with every chunk.
type ChunkMetadata struct {
	DocumentID   string       `json:"document_id" yaml:"document_id"`
	ChunkIndex   int          `json:"chunk_index" yaml:"chunk_index"`
	DocumentKind DocumentKind `json:"document_kind" yaml:"document_kind"`
	Filename     string       `json:"filename" yaml:"filename"`
	Page         int          `json:"page" yaml:"page"`
}

// Chunk is a bounded span of a document's text with its embedding.
type Chunk struct {
	// ID is derived from the document id and chunk index.
	ID string `json:"id" yaml:"id"`

	// DocumentID refers back to the owning document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Index is the chunk's position within the document.
	Index int `json:"index" yaml:"index"`

	// Start and End delimit the span within the document text.
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`

	// Text is the raw span Document.Text[Start:End].
	Text string `json:"text" yaml:"text"`

	// Embedding is the vector representation of Text.
	Embedding []float32 `json:"-" yaml:"-"`

	Metadata ChunkMetadata `json:"metadata" yaml:"metadata"`

	// Seq is the index insertion sequence, used to break score ties.
	Seq int64 `json:"-" yaml:"-"`
}

// SearchResult is a chunk returned by a similarity query.
type SearchResult struct {
	Chunk Chunk `json:"chunk" yaml:"chunk"`

	// Score is the cosine similarity clamped to [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Rank is the 1-based position in the result list.
	Rank int `json:"rank" yaml:"rank"`
}

// ResponseType selects the tone of a drafted response.
type ResponseType string

const (
	ResponseProfessional ResponseType = "professional"
	ResponseFormal       ResponseType = "formal"
	ResponseConciliatory ResponseType = "conciliatory"
	ResponseAssertive    ResponseType = "assertive"
)

// ResponseTypes lists every valid ResponseType.
var ResponseTypes = []ResponseType{
	ResponseProfessional, ResponseFormal, ResponseConciliatory, ResponseAssertive,
}

// ParseResponseType validates a response type name.
func ParseResponseType(s string) (ResponseType, error) {
	rt := ResponseType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ResponseTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", &InvalidQueryError{Reason: "unknown response type " + strconv.Quote(s)}
}

// Precedent is a retrieved chunk attached to a response with its rationale.
type Precedent struct {
	ChunkID    string  `json:"chunk_id" yaml:"chunk_id"`
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Score      float64 `json:"score" yaml:"score"`
	Rationale  string  `json:"rationale" yaml:"rationale"`
}

// Response is a generated reply to a document. Responses are immutable;
// regenerating creates a new Response.
type Response struct {
	ID         string       `json:"id" yaml:"id"`
	DocumentID string       `json:"document_id" yaml:"document_id"`
	Type       ResponseType `json:"type" yaml:"type"`
	Text       string       `json:"text" yaml:"text"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// PrecedentIDs lists the chunk ids used, in rank order.
	PrecedentIDs []string    `json:"precedent_ids" yaml:"precedent_ids"`
	Precedents   []Precedent `json:"precedents" yaml:"precedents"`

	Reasoning string   `json:"reasoning" yaml:"reasoning"`
	KeyPoints []string `json:"key_points" yaml:"key_points"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Stats summarises the stored corpus.
type Stats struct {
	DocumentCount  int   `json:"document_count" yaml:"document_count"`
	ChunkCount     int   `json:"chunk_count" yaml:"chunk_count"`
	ResponseCount  int   `json:"response_count" yaml:"response_count"`
	IndexSizeBytes int64 `json:"index_size_bytes" yaml:"index_size_bytes"`
}
