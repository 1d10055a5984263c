package selector

import (
	"errors"
	"fmt"

	"tml-rank-card/config"
	"tml-rank-card/models"
)

// ErrNoRecords is returned by the top-record mode when the report has no rows
var ErrNoRecords = errors.New("no records found")

// Selector picks the text drawn on the card
type Selector struct {
	mode  string
	fixed string
}

// NewSelector creates a new Selector instance from the text configuration
func NewSelector(cfg *config.Config) *Selector {
	return &Selector{
		mode:  cfg.Text.Mode,
		fixed: cfg.Text.Fixed,
	}
}

// Select returns the card text for a record set.
// It depends only on its input and the configured mode.
func (s *Selector) Select(records models.RecordSet) (string, error) {
	switch s.mode {
	case config.TextModeFixed:
		return s.fixed, nil
	case config.TextModeTopRecord, "":
		top, ok := records.Top()
		if !ok {
			return "", ErrNoRecords
		}
		return top.DisplayName, nil
	default:
		return "", fmt.Errorf("unknown text mode %q", s.mode)
	}
}
