// Package normalizer turns raw carrier tracking responses into a canonical
// event list. The carrier API serves the same logical document as XML or
// JSON; one parser implementation exists per wire format and both produce
// the same tagged Result, so downstream code never inspects wire shapes.
package normalizer

import (
	"fmt"
	"strings"
	"time"
)

// Outcome tags a parse result.
type Outcome string

func (o Outcome) String() string { return string(o) }

const (
	// OutcomeSuccess means the document was located and events extracted.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeNotFound means the API answered but does not know the document.
	OutcomeNotFound Outcome = "NOT_FOUND"
	// OutcomeMalformed means the response body could not be interpreted.
	OutcomeMalformed Outcome = "MALFORMED"
)

// Header carries the document-level fields of a located response.
type Header struct {
	Sender         string
	Recipient      string
	DocumentNumber string
	OrderRef       string
}

// Event is one canonical tracking occurrence.
type Event struct {
	Timestamp        time.Time
	Branch           string
	Domain           string
	City             string
	OccurrenceText   string
	OccurrenceCode   string
	Description      string
	DeliveredAt      *time.Time
	ReceiverName     string
	ReceiverDocument string
}

// Result is the tagged outcome of parsing one carrier response.
type Result struct {
	Outcome Outcome
	Message string
	Header  Header
	Events  []Event
}

// Parser parses a raw carrier response body. Implementations never fail:
// unreadable input downgrades to a MALFORMED result with a diagnostic
// message, and individual events missing required fields are skipped.
type Parser interface {
	Parse(raw []byte) Result
}

// eventTimeLayout is the timestamp format the carrier API emits.
const eventTimeLayout = "2006-01-02T15:04:05"

// rawItem is the wire-format-independent shape of one tracking item, filled
// by the XML and JSON parsers before shared normalization.
type rawItem struct {
	Timestamp     string
	Branch        string
	Domain        string
	City          string
	Occurrence    string
	Description   string
	EffectiveTime string
	ReceiverName  string
	ReceiverDoc   string
}

// SplitOccurrence separates the occurrence text from its parenthesized
// numeric code suffix, e.g. "MERCADORIA ENTREGUE (01)" -> ("MERCADORIA
// ENTREGUE", "01"). Text without a numeric suffix is returned unchanged
// with an empty code; the classifier resolves those by description later.
func SplitOccurrence(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasSuffix(trimmed, ")") {
		return trimmed, ""
	}

	open := strings.LastIndex(trimmed, "(")
	if open < 0 {
		return trimmed, ""
	}

	code := strings.TrimSpace(trimmed[open+1 : len(trimmed)-1])
	if code == "" || !isDigits(code) {
		return trimmed, ""
	}

	return strings.TrimSpace(trimmed[:open]), code
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildEvents normalizes raw items, skipping items without a parsable
// timestamp or occurrence text. Order is preserved: the API returns events
// oldest first and the representative-event selection depends on it.
func buildEvents(items []rawItem) []Event {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		occurrence := strings.TrimSpace(item.Occurrence)
		if occurrence == "" {
			continue
		}

		ts, err := time.Parse(eventTimeLayout, strings.TrimSpace(item.Timestamp))
		if err != nil {
			continue
		}

		text, code := SplitOccurrence(occurrence)
		event := Event{
			Timestamp:        ts,
			Branch:           strings.TrimSpace(item.Branch),
			Domain:           strings.TrimSpace(item.Domain),
			City:             strings.TrimSpace(item.City),
			OccurrenceText:   text,
			OccurrenceCode:   code,
			Description:      strings.TrimSpace(item.Description),
			ReceiverName:     strings.TrimSpace(item.ReceiverName),
			ReceiverDocument: strings.TrimSpace(item.ReceiverDoc),
		}

		if effective := strings.TrimSpace(item.EffectiveTime); effective != "" {
			if deliveredAt, err := time.Parse(eventTimeLayout, effective); err == nil {
				event.DeliveredAt = &deliveredAt
			}
		}

		events = append(events, event)
	}
	return events
}

func malformed(format string, args ...any) Result {
	return Result{
		Outcome: OutcomeMalformed,
		Message: fmt.Sprintf(format, args...),
	}
}
