package classifier

import (
	"strings"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
)

// Keyword sets matched against carrier occurrence text. Carriers phrase the
// same milestone several ways, so matching is substring based and
// case-insensitive.
var (
	defaultDeliveredPatterns = []string{
		"MERCADORIA ENTREGUE",
		"ENTREGA REALIZADA",
		"ENTREGUE AO DESTINATÁRIO",
		"CONCLUÍDO",
	}

	defaultProblemPatterns = []string{
		"PROBLEMA",
		"DEVOLVIDO",
		"EXTRAVIADO",
		"ROUBADO",
		"AVARIA",
		"CANCELADO",
	}
)

// PatternClassifier derives the status from keyword matches on the
// representative event's occurrence text. Delivery keywords win over problem
// keywords when both match; anything unmatched stays IN_TRANSIT.
type PatternClassifier struct {
	delivered []string
	problem   []string
}

// NewPatternClassifier builds a keyword classifier. Nil slices fall back to
// the built-in Portuguese keyword sets.
func NewPatternClassifier(delivered, problem []string) *PatternClassifier {
	if delivered == nil {
		delivered = defaultDeliveredPatterns
	}
	if problem == nil {
		problem = defaultProblemPatterns
	}
	return &PatternClassifier{delivered: delivered, problem: problem}
}

func (c *PatternClassifier) Classify(events []normalizer.Event) domain.Status {
	representative, ok := RepresentativeEvent(events)
	if !ok {
		return domain.StatusNotFound
	}

	text := representative.OccurrenceText
	switch {
	case matchesAny(text, c.delivered):
		return domain.StatusDelivered
	case matchesAny(text, c.problem):
		return domain.StatusProblem
	default:
		return domain.StatusInTransit
	}
}

func matchesAny(text string, patterns []string) bool {
	upper := strings.ToUpper(text)
	for _, pattern := range patterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
