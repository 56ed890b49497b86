package types

// Identity is the minimal description of a listing used for logging and title matching.
type Identity struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
}

// Candidate is a listing under consideration in the current scan batch.
// Node is only valid while the listing stays rendered; re-scan after navigation or scrolling.
type Candidate struct {
	Identity    Identity `json:"identity"`
	IsFastApply bool     `json:"is_fast_apply"`
	Index       int      `json:"index"`
	Node        any      `json:"-"`
}
