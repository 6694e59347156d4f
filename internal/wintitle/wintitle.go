package wintitle

import "regexp"

// Titler enumerates visible window titles for a pid. It is an optional
// collaborator used by account identification; the engine itself never
// depends on it being real. The implementation is injected at startup;
// platforms without window enumeration use Noop.
type Titler interface {
	TitlesByPID(pid int) ([]string, error)
}

// Noop is the degraded implementation: no titles, no error.
type Noop struct{}

func (Noop) TitlesByPID(int) ([]string, error) { return nil, nil }

// account hints look like "@handle" or a long digit run (phone number)
var hintRe = regexp.MustCompile(`@\w+|\b\+?\d{6,}\b`)

// Suggest picks the most account-like title: the first one containing an
// account hint, else the first title, else "".
func Suggest(titles []string) string {
	for _, t := range titles {
		if hintRe.MatchString(t) {
			return t
		}
	}
	if len(titles) > 0 {
		return titles[0]
	}
	return ""
}
