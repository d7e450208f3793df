package entity

// StatsSummary aggregates finished games across the deployment lifetime.
type StatsSummary struct {
	Games int64 `json:"games"`
	WinsX int64 `json:"wins_x"`
	WinsO int64 `json:"wins_o"`
	Draws int64 `json:"draws"`
}
