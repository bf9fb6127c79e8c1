package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for report elements.
type ColorScheme struct {
	Header      *color.Color
	Status2xx   *color.Color
	Status3xx   *color.Color
	Status4xx   *color.Color
	StatusError *color.Color
	Pass        *color.Color
	Fail        *color.Color
}

// DefaultColorScheme returns the scheme used on terminals.
func DefaultColorScheme() *ColorScheme {
	s := &ColorScheme{
		Header:      color.New(color.FgMagenta, color.Bold),
		Status2xx:   color.New(color.FgGreen),
		Status3xx:   color.New(color.FgCyan),
		Status4xx:   color.New(color.FgYellow),
		StatusError: color.New(color.FgRed, color.Bold),
		Pass:        color.New(color.FgGreen),
		Fail:        color.New(color.FgRed),
	}
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

// NoColorScheme returns a scheme with every color disabled.
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.DisableColor()
	}
	return s
}

// SchemeFor picks a scheme for f: colors only when f is a terminal and
// noColor is unset.
func SchemeFor(f *os.File, noColor bool) *ColorScheme {
	if noColor || f == nil || !isTerminal(f) {
		return NoColorScheme()
	}
	return DefaultColorScheme()
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Header, s.Status2xx, s.Status3xx, s.Status4xx, s.StatusError, s.Pass, s.Fail}
}

// forBucket returns the color for a status bucket such as "200" or "error".
func (s *ColorScheme) forBucket(code string) *color.Color {
	if len(code) == 3 {
		switch code[0] {
		case '2':
			return s.Status2xx
		case '3':
			return s.Status3xx
		case '4':
			return s.Status4xx
		}
	}
	return s.StatusError
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
