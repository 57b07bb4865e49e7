package db

import "errors"

// ErrNotFound is reported (wrapped in an ErrorResult) when a query
// addresses a missing record.
var ErrNotFound = errors.New("record not found")

// CountResult answers the *GetCount queries.
type CountResult struct {
	ResultBase
	Count uint32
}

// SuccessResult answers queries that only report success.
type SuccessResult struct {
	ResultBase
	Succeed bool
}

// ErrorResult reports a query the executor could not run.
type ErrorResult struct {
	ResultBase
	Err error
}

// EventsResult answers calendar reads.
type EventsResult struct {
	ResultBase
	Records    []Event
	TotalCount uint32
}

// SMSResult answers message reads.
type SMSResult struct {
	ResultBase
	Records    []SMS
	TotalCount uint32
}

// ThreadsResult answers thread reads.
type ThreadsResult struct {
	ResultBase
	Records    []Thread
	TotalCount uint32
}

// TemplatesResult answers template reads.
type TemplatesResult struct {
	ResultBase
	Records    []Template
	TotalCount uint32
}

// CalllogResult answers call log reads.
type CalllogResult struct {
	ResultBase
	Records    []Calllog
	TotalCount uint32
}

// ContactsResult answers contact reads.
type ContactsResult struct {
	ResultBase
	Records    []Contact
	TotalCount uint32
}

// ContactAddResult answers ContactAdd. When Duplicated is set, DuplicateID
// names the contact already holding one of the numbers.
type ContactAddResult struct {
	ResultBase
	Succeed     bool
	ID          uint32
	Duplicated  bool
	DuplicateID uint32
}
