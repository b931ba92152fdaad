package result

import "fmt"

// Verdict is the single-letter outcome of a run or a test.
// The zero value means "not decided yet".
type Verdict byte

const (
	VerdictNone     Verdict = 0
	VerdictAC       Verdict = 'A'
	VerdictWA       Verdict = 'W'
	VerdictPE       Verdict = 'P'
	VerdictJE       Verdict = 'J'
	VerdictRE       Verdict = 'R'
	VerdictTLE      Verdict = 'T'
	VerdictMLE      Verdict = 'M'
	VerdictDeadlock Verdict = 'D'
	VerdictNoOutput Verdict = 'O'
	VerdictSkipped  Verdict = '.'
	// VerdictKilled is interactive-only: the process was stopped because its peer looked stuck.
	VerdictKilled Verdict = 'K'
)

var verdictNames = map[Verdict]string{
	VerdictAC:       "Accepted",
	VerdictWA:       "Wrong answer",
	VerdictPE:       "Presentation error",
	VerdictJE:       "Jury error",
	VerdictRE:       "Runtime error",
	VerdictTLE:      "Time limit exceeded",
	VerdictMLE:      "Memory limit exceeded",
	VerdictDeadlock: "Deadlock",
	VerdictNoOutput: "Output for test not found",
	VerdictSkipped:  "Skipped",
	VerdictKilled:   "Killed",
}

// Valid reports whether v belongs to the verdict vocabulary.
func (v Verdict) Valid() bool {
	_, ok := verdictNames[v]
	return ok
}

// String returns the single-letter form.
func (v Verdict) String() string {
	if v == VerdictNone {
		return ""
	}
	return string(rune(v))
}

// FullName returns the human readable name, "(none)" for unknown values.
func (v Verdict) FullName() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "(none)"
}

// IsResourceViolation reports T, M and D.
func (v Verdict) IsResourceViolation() bool {
	return v == VerdictTLE || v == VerdictMLE || v == VerdictDeadlock
}

// IsRunOutcome reports verdicts the monitor itself can assign to a process.
func (v Verdict) IsRunOutcome() bool {
	switch v {
	case VerdictAC, VerdictRE, VerdictTLE, VerdictMLE, VerdictDeadlock, VerdictKilled:
		return true
	}
	return false
}

// ParseVerdict parses a single-letter verdict.
func ParseVerdict(s string) (Verdict, error) {
	if s == "" {
		return VerdictNone, nil
	}
	if len(s) != 1 {
		return VerdictNone, fmt.Errorf("invalid verdict %q", s)
	}
	v := Verdict(s[0])
	if !v.Valid() {
		return VerdictNone, fmt.Errorf("invalid verdict %q", s)
	}
	return v, nil
}

// MarshalText encodes the verdict as its letter.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a letter produced by MarshalText.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VerdictForCheckerCode maps a checker (or arbiter) exit code to a verdict.
// Codes 4..16 are reserved by testlib-style checkers and still mean a negative judgement;
// anything else, including negative codes from signal deaths, blames the jury.
func VerdictForCheckerCode(code int) Verdict {
	switch {
	case code == 0:
		return VerdictAC
	case code == 1:
		return VerdictWA
	case code == 2:
		return VerdictPE
	case code == 3:
		return VerdictJE
	case code >= 4 && code <= 16:
		return VerdictWA
	default:
		return VerdictJE
	}
}
