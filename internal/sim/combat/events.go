package combat

type Kind string

const (
	KindDeath    Kind = "death"
	KindTransfer Kind = "transfer"
)

type Cause string

const (
	CauseBoundary Cause = "boundary"
	CauseSelf     Cause = "self"
	CauseHead     Cause = "head"
	CauseBody     Cause = "body"
	// CauseReported is a death the owning client announced with player_death.
	CauseReported Cause = "reported"
)

// Event is one combat outcome. For deaths Victim is the dead snake and Killer the snake
// credited (empty for boundary, self and reported deaths). For transfers Victim lost the
// segment and Killer took it.
type Event struct {
	Kind   Kind   `json:"kind"`
	Cause  Cause  `json:"cause,omitempty"`
	Victim string `json:"victim"`
	Killer string `json:"killer,omitempty"`
	// Value is the victim's head value at death, or the transferred segment value.
	Value   int `json:"value"`
	Dropped int `json:"dropped,omitempty"`
}
