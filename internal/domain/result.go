package domain

// ResultColor is the three-level traffic light derived from a session's
// item statuses.
type ResultColor string

const (
	ColorRed    ResultColor = "red"
	ColorYellow ResultColor = "yellow"
	ColorGreen  ResultColor = "green"
)

// Result carries the derived scoring fields cached on a session. The
// scoring engine is the only writer; sessions never author these by hand.
type Result struct {
	Color          ResultColor
	Percentage     int
	CriticalFailed int
	Description    string
}
