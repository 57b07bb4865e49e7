package update

import (
	"errors"
	"fmt"
)

// Code identifies why an update run stopped.
type Code int

// Error codes. The numeric values are reported to the desktop tool.
const (
	NoError Code = iota
	CantCreateTempDir
	CantCreateUpdatesDir
	CantRemoveUniqueTmpDir
	CantRemoveUpdateFile
	CantCreateUniqueTmpDir
	CantDeletePreviousOS
	CantRenameCurrentToPrevious
	CantUpdateCRC32JSON
	CantDeltreePreviousOS
	CantOpenUpdateFile
	CantCreateExtractedFile
	CantOpenChecksumsFile
	VerifyChecksumsFailure
	VerifyVersionFailure
	CantUpdateBootloader
	CantCopyTempToCurrent
	UpdateAborted
)

var codeNames = map[Code]string{
	NoError:                     "NoError",
	CantCreateTempDir:           "CantCreateTempDir",
	CantCreateUpdatesDir:        "CantCreateUpdatesDir",
	CantRemoveUniqueTmpDir:      "CantRemoveUniqueTmpDir",
	CantRemoveUpdateFile:        "CantRemoveUpdateFile",
	CantCreateUniqueTmpDir:      "CantCreateUniqueTmpDir",
	CantDeletePreviousOS:        "CantDeletePreviousOS",
	CantRenameCurrentToPrevious: "CantRenameCurrentToPrevious",
	CantUpdateCRC32JSON:         "CantUpdateCRC32JSON",
	CantDeltreePreviousOS:       "CantDeltreePreviousOS",
	CantOpenUpdateFile:          "CantOpenUpdateFile",
	CantCreateExtractedFile:     "CantCreateExtractedFile",
	CantOpenChecksumsFile:       "CantOpenChecksumsFile",
	VerifyChecksumsFailure:      "VerifyChecksumsFailure",
	VerifyVersionFailure:        "VerifyVersionFailure",
	CantUpdateBootloader:        "CantUpdateBootloader",
	CantCopyTempToCurrent:       "CantCopyTempToCurrent",
	UpdateAborted:               "UpdateAborted",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a failed update phase.
type Error struct {
	// Code classifies the failure.
	Code Code
	// State is the phase the engine was in.
	State State
	// Msg describes the failure for the desktop tool.
	Msg string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("update %s: %s: %s: %v", e.State, e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("update %s: %s: %s", e.State, e.Code, e.Msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, state State, err error, format string, args ...any) *Error {
	return &Error{Code: code, State: state, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err, NoError for nil, and
// CantOpenUpdateFile for errors that did not come from the engine.
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return CantOpenUpdateFile
}

// IsAborted reports whether err is an abort.
func IsAborted(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == UpdateAborted
}
