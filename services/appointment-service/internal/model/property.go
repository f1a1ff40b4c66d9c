package model

// Property is the read-only listing an appointment is booked against.
type Property struct {
	ID       string
	Title    string
	Address  string
	AgentID  string
	ImageURL string
}

// PropertySummary is the denormalised property view attached to appointment reads.
type PropertySummary struct {
	Title    string
	Address  string
	ImageURL string
}
