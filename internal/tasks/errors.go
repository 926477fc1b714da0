package tasks

import "fmt"

type TransferErrorKind int

const (
	NoMatchesFound TransferErrorKind = iota
	CreateFailed
	AddFailed
)

func (k TransferErrorKind) String() string {
	switch k {
	case NoMatchesFound:
		return "no matches found"
	case CreateFailed:
		return "create failed"
	case AddFailed:
		return "add failed"
	default:
		return fmt.Sprintf("TransferErrorKind(%d)", int(k))
	}
}

// TransferError is the failure recorded for one playlist.
type TransferError struct {
	Kind     TransferErrorKind
	Playlist string
	Err      error
}

// Targets for errors.Is.
var (
	ErrNoMatchesFound = &TransferError{Kind: NoMatchesFound}
	ErrCreateFailed   = &TransferError{Kind: CreateFailed}
	ErrAddFailed      = &TransferError{Kind: AddFailed}
)

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transfer %q: %s", e.Playlist, e.Kind)
	}
	return fmt.Sprintf("transfer %q: %s: %v", e.Playlist, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool {
	t, ok := target.(*TransferError)
	return ok && t.Kind == e.Kind
}
