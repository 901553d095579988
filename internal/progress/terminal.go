package progress

import (
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

// Spinner renders events on the terminal with a pterm spinner. The spinner
// starts on the first event and stops on a Complete or Error event.
type Spinner struct {
	mu      sync.Mutex
	title   string
	spinner *pterm.SpinnerPrinter
}

// NewSpinner creates a terminal reporter; title prefixes every update.
func NewSpinner(title string) *Spinner {
	return &Spinner{title: title}
}

// Report updates the spinner text.
func (s *Spinner) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := fmt.Sprintf("%s: %s (%d/%d, %.0f%%)", s.title, e.Message, e.Current, e.Total, e.Percentage)

	if s.spinner == nil {
		sp, err := pterm.DefaultSpinner.WithRemoveWhenDone(false).Start(text)
		if err != nil {
			return
		}
		s.spinner = sp
	}

	switch {
	case e.Total == 100 && e.Current == 100 && e.Percentage == 100:
		s.spinner.Success(fmt.Sprintf("%s: %s", s.title, e.Message))
		s.spinner = nil
	case e.Total == 0 && e.Current == 0 && e.Message != "":
		s.spinner.Fail(fmt.Sprintf("%s: %s", s.title, e.Message))
		s.spinner = nil
	default:
		s.spinner.UpdateText(text)
	}
}

// Stop halts a running spinner without a final status line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spinner != nil {
		_ = s.spinner.Stop()
		s.spinner = nil
	}
}
