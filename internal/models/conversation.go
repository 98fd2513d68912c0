package models

import "time"

// Conversation is the message log of one page session.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Failure   *Failure  `json:"failure,omitempty"`
	Pending   bool      `json:"pending"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Failure records the last submission that did not produce an assistant turn.
// Draft holds the user's input so the page can offer it again.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Draft   string `json:"draft"`
}
