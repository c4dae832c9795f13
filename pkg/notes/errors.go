package notes

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

var (
	// ErrNoteNotFound means the referenced note id does not resolve within
	// the caller's center.
	ErrNoteNotFound = errors.New("note not found")

	// ErrInvalidTransition means the requested lifecycle transition is not
	// legal from the note's current status.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrImmutableNote means a content mutation was attempted on a note
	// whose clinical content is frozen. Recovery is to derive a new version.
	ErrImmutableNote = errors.New("note content is immutable")

	// ErrIncompleteSignature means the signature payload is missing required
	// fields. The note is left unchanged; the caller may resubmit.
	ErrIncompleteSignature = errors.New("incomplete signature payload")

	// ErrConcurrentModification means the caller's revision token is stale:
	// another write landed since the note was read.
	ErrConcurrentModification = errors.New("note modified concurrently")
)

type TransitionError struct {
	NoteID uuid.UUID
	From   models.NoteStatus
	To     models.NoteStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("note %s: cannot transition from %s to %s: %v", e.NoteID, e.From, e.To, ErrInvalidTransition)
}

func (e TransitionError) Unwrap() error { return ErrInvalidTransition }

type ImmutableError struct {
	NoteID uuid.UUID
	Status models.NoteStatus
}

func (e ImmutableError) Error() string {
	return fmt.Sprintf("note %s: status %s: %v", e.NoteID, e.Status, ErrImmutableNote)
}

func (e ImmutableError) Unwrap() error { return ErrImmutableNote }

type SignatureError struct {
	Missing []string
}

func (e SignatureError) Error() string {
	return fmt.Sprintf("missing %v: %v", e.Missing, ErrIncompleteSignature)
}

func (e SignatureError) Unwrap() error { return ErrIncompleteSignature }

func IsNotFound(err error) bool  { return errors.Is(err, ErrNoteNotFound) }
func IsImmutable(err error) bool { return errors.Is(err, ErrImmutableNote) }
func IsConflict(err error) bool  { return errors.Is(err, ErrConcurrentModification) }
