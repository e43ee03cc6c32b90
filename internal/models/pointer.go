package models

// Pointer is a per-writer plan pointer file: the one artifact a writer may
// directly edit. PlanID and Status are empty when the writer has nothing in
// flight; that absence is still represented as a row at sync time.
type Pointer struct {
	Author      string `json:"author"`
	PlanID      string `json:"plan_id"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	LastUpdated string `json:"last_updated"` // ISO YYYY-MM-DD
}

// TeamRow is one writer's entry in the derived team index. Fields are
// serialized even when empty so consumers see explicit nulls rather than
// missing keys.
type TeamRow struct {
	Author      string `json:"author"`
	PlanID      string `json:"plan_id"`
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated"`
}
