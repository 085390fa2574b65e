package posture

// Status texts that are not produced by the classifier.
const (
	TextNoPerson = "No Person"
	TextUserAway = "User Away"
	TextStandUp  = "Time to Stand up!"
)

// Status is the merged verdict before it becomes a payload.
type Status struct {
	Text      string `json:"text"`
	Bad       bool   `json:"bad"`
	Label     Label  `json:"label,omitempty"`
	Sedentary bool   `json:"sedentary"`
}

// ApplySedentary overrides any posture status with the stand-up alert once the
// session has lasted longer than limitSec. It runs last and always wins.
func ApplySedentary(st Status, session SessionSnapshot, limitSec int) Status {
	if session.ElapsedSec > limitSec {
		return Status{Text: TextStandUp, Bad: true, Label: st.Label, Sedentary: true}
	}
	return st
}
