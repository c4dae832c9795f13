package notes

import (
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// The lifecycle engine gates every mutation of a note against its status.
//
//	draft <-> pending
//	draft|pending -> signed -> locked  (signing and locking are one atomic step)
//
// locked is terminal; a locked note is only superseded by deriving a new
// version. Status is assigned exclusively through the transition helpers
// here and the store's conditional updates, never by direct field writes.

var legalTransitions = map[models.NoteStatus][]models.NoteStatus{
	models.StatusDraft:   {models.StatusPending, models.StatusSigned},
	models.StatusPending: {models.StatusDraft, models.StatusSigned},
	models.StatusSigned:  {models.StatusLocked},
	models.StatusLocked:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
// signed -> locked is legal only as the second half of the atomic sign step;
// it is included here so invariant checks can walk the full machine.
func CanTransition(from, to models.NoteStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanMutateContent reports whether clinical content, diagnosis, and template
// fields may still change. Advisory writes (aiValidation, attachment
// metadata) are exempt from this gate.
func CanMutateContent(status models.NoteStatus) bool {
	return status == models.StatusDraft || status == models.StatusPending
}

// Signable reports whether a note in the given status may receive a
// signature.
func Signable(status models.NoteStatus) bool {
	return status == models.StatusDraft || status == models.StatusPending
}

// Deletable reports whether a note may be hard-deleted. Locked notes are
// never deleted, only superseded.
func Deletable(status models.NoteStatus) bool {
	return status != models.StatusLocked
}

// ValidStatus reports whether s is one of the four lifecycle states.
func ValidStatus(s models.NoteStatus) bool {
	_, ok := legalTransitions[s]
	return ok
}
