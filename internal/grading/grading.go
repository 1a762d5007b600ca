// Package grading scores a finished call transcript against a sales
// script and its objection-handling reference material.
package grading

import "time"

// ObjectionMap groups known objections by category; each objection
// maps to the approved responses an agent is expected to use.
type ObjectionMap map[string]map[string][]string

// Script is the reference material one call is graded against.
type Script struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Content    string       `json:"content"`
	Objections ObjectionMap `json:"objections"`
}

// Scores holds the six 1-10 integer sub-scores.
type Scores struct {
	Tone              int `json:"tone"`
	OnScript          int `json:"on_script"`
	Presentation      int `json:"presentation"`
	ObjectionHandling int `json:"objection_handling"`
	Speaking          int `json:"speaking"`
	Overall           int `json:"overall"`
}

// Result is the structured grade produced once per finished session.
type Result struct {
	SessionID  string    `json:"session_id"`
	Scores     Scores    `json:"scores"`
	Notes      string    `json:"notes"`
	Transcript string    `json:"transcript"`
	GradedAt   time.Time `json:"graded_at"`
}
