// Package turn runs one conversational turn against a form document.
//
// A turn is a small state machine:
//
//	Analyzing -> EnrichingWithHistory -> MutatingDocument -> Validating -> {AskingQuestion | Done}
//
// Each stage receives a State value and returns a new one; the branch after
// Validating is the pure function Decide. Collaborator failures (extraction,
// history lookup) and per-field mutation failures degrade the turn, they
// never abort it. Turns for the same session must be serialized by the
// caller.
package turn
