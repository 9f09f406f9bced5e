package models

// Mode selects between the concise llms.txt and the detailed llms-full.txt.
type Mode struct {
	Full bool
}

// ModeFor maps the fullVersion request flag to a Mode.
func ModeFor(fullVersion bool) Mode {
	return Mode{Full: fullVersion}
}

// PageLimit is the number of pages requested from discovery.
func (m Mode) PageLimit() int {
	if m.Full {
		return 100
	}
	return 10
}

// MaxTokens is the output ceiling passed to the completion service.
func (m Mode) MaxTokens() int {
	if m.Full {
		return 4000
	}
	return 2000
}

// DocumentName is the file name of the generated document.
func (m Mode) DocumentName() string {
	if m.Full {
		return "llms-full.txt"
	}
	return "llms.txt"
}

func (m Mode) String() string {
	if m.Full {
		return "full"
	}
	return "concise"
}
