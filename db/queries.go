package db

// --- calendar ---

// EventsGetAllLimited reads a page of events ordered by start time.
type EventsGetAllLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewEventsGetAllLimited creates an EventsGetAllLimited query.
func NewEventsGetAllLimited(offset, limit uint32) *EventsGetAllLimited {
	return &EventsGetAllLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*EventsGetAllLimited) Name() string { return "EventsGetAllLimited" }

// EventsAdd inserts an event.
type EventsAdd struct {
	Base
	Record Event
}

// NewEventsAdd creates an EventsAdd query.
func NewEventsAdd(record Event) *EventsAdd {
	return &EventsAdd{Base: newBase(TypeCreate), Record: record}
}

// Name implements Query.
func (*EventsAdd) Name() string { return "EventsAdd" }

// EventsEdit replaces the event with the same UID.
type EventsEdit struct {
	Base
	Record Event
}

// NewEventsEdit creates an EventsEdit query.
func NewEventsEdit(record Event) *EventsEdit {
	return &EventsEdit{Base: newBase(TypeUpdate), Record: record}
}

// Name implements Query.
func (*EventsEdit) Name() string { return "EventsEdit" }

// EventsRemove deletes the event with the given UID.
type EventsRemove struct {
	Base
	UID string
}

// NewEventsRemove creates an EventsRemove query.
func NewEventsRemove(uid string) *EventsRemove {
	return &EventsRemove{Base: newBase(TypeDelete), UID: uid}
}

// Name implements Query.
func (*EventsRemove) Name() string { return "EventsRemove" }

// --- messages ---

// SMSGetCount counts messages.
type SMSGetCount struct{ Base }

// NewSMSGetCount creates an SMSGetCount query.
func NewSMSGetCount() *SMSGetCount { return &SMSGetCount{Base: newBase(TypeRead)} }

// Name implements Query.
func (*SMSGetCount) Name() string { return "SMSGetCount" }

// SMSGetByID reads one message.
type SMSGetByID struct {
	Base
	ID uint32
}

// NewSMSGetByID creates an SMSGetByID query.
func NewSMSGetByID(id uint32) *SMSGetByID {
	return &SMSGetByID{Base: newBase(TypeRead), ID: id}
}

// Name implements Query.
func (*SMSGetByID) Name() string { return "SMSGetByID" }

// SMSGetByContactID reads all messages exchanged with a contact.
type SMSGetByContactID struct {
	Base
	ContactID uint32
}

// NewSMSGetByContactID creates an SMSGetByContactID query.
func NewSMSGetByContactID(contactID uint32) *SMSGetByContactID {
	return &SMSGetByContactID{Base: newBase(TypeRead), ContactID: contactID}
}

// Name implements Query.
func (*SMSGetByContactID) Name() string { return "SMSGetByContactID" }

// SMSGetByThreadID reads a page of one thread.
type SMSGetByThreadID struct {
	Base
	ThreadID uint32
	Offset   uint32
	Limit    uint32
}

// NewSMSGetByThreadID creates an SMSGetByThreadID query.
func NewSMSGetByThreadID(threadID, offset, limit uint32) *SMSGetByThreadID {
	return &SMSGetByThreadID{Base: newBase(TypeRead), ThreadID: threadID, Offset: offset, Limit: limit}
}

// Name implements Query.
func (*SMSGetByThreadID) Name() string { return "SMSGetByThreadID" }

// SMSGetByText reads messages whose body contains Text.
type SMSGetByText struct {
	Base
	Text string
}

// NewSMSGetByText creates an SMSGetByText query.
func NewSMSGetByText(text string) *SMSGetByText {
	return &SMSGetByText{Base: newBase(TypeRead), Text: text}
}

// Name implements Query.
func (*SMSGetByText) Name() string { return "SMSGetByText" }

// SMSGetLimited reads a page of messages, newest first.
type SMSGetLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewSMSGetLimited creates an SMSGetLimited query.
func NewSMSGetLimited(offset, limit uint32) *SMSGetLimited {
	return &SMSGetLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*SMSGetLimited) Name() string { return "SMSGetLimited" }

// SMSRemove deletes a message.
type SMSRemove struct {
	Base
	ID uint32
}

// NewSMSRemove creates an SMSRemove query.
func NewSMSRemove(id uint32) *SMSRemove {
	return &SMSRemove{Base: newBase(TypeDelete), ID: id}
}

// Name implements Query.
func (*SMSRemove) Name() string { return "SMSRemove" }

// ThreadMarkAsRead sets the read state of a thread.
type ThreadMarkAsRead struct {
	Base
	ThreadID uint32
	Read     bool
}

// NewThreadMarkAsRead creates a ThreadMarkAsRead query.
func NewThreadMarkAsRead(threadID uint32, read bool) *ThreadMarkAsRead {
	return &ThreadMarkAsRead{Base: newBase(TypeUpdate), ThreadID: threadID, Read: read}
}

// Name implements Query.
func (*ThreadMarkAsRead) Name() string { return "ThreadMarkAsRead" }

// ThreadsGetLimited reads a page of threads, most recent first.
type ThreadsGetLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewThreadsGetLimited creates a ThreadsGetLimited query.
func NewThreadsGetLimited(offset, limit uint32) *ThreadsGetLimited {
	return &ThreadsGetLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*ThreadsGetLimited) Name() string { return "ThreadsGetLimited" }

// --- templates ---

// TemplateGetCount counts templates.
type TemplateGetCount struct{ Base }

// NewTemplateGetCount creates a TemplateGetCount query.
func NewTemplateGetCount() *TemplateGetCount { return &TemplateGetCount{Base: newBase(TypeRead)} }

// Name implements Query.
func (*TemplateGetCount) Name() string { return "TemplateGetCount" }

// TemplateGetByID reads one template.
type TemplateGetByID struct {
	Base
	ID uint32
}

// NewTemplateGetByID creates a TemplateGetByID query.
func NewTemplateGetByID(id uint32) *TemplateGetByID {
	return &TemplateGetByID{Base: newBase(TypeRead), ID: id}
}

// Name implements Query.
func (*TemplateGetByID) Name() string { return "TemplateGetByID" }

// TemplateGetLimited reads a page of templates.
type TemplateGetLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewTemplateGetLimited creates a TemplateGetLimited query.
func NewTemplateGetLimited(offset, limit uint32) *TemplateGetLimited {
	return &TemplateGetLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*TemplateGetLimited) Name() string { return "TemplateGetLimited" }

// TemplateAdd inserts a template.
type TemplateAdd struct {
	Base
	Record Template
}

// NewTemplateAdd creates a TemplateAdd query.
func NewTemplateAdd(record Template) *TemplateAdd {
	return &TemplateAdd{Base: newBase(TypeCreate), Record: record}
}

// Name implements Query.
func (*TemplateAdd) Name() string { return "TemplateAdd" }

// TemplateUpdate replaces the template with the same id.
type TemplateUpdate struct {
	Base
	Record Template
}

// NewTemplateUpdate creates a TemplateUpdate query.
func NewTemplateUpdate(record Template) *TemplateUpdate {
	return &TemplateUpdate{Base: newBase(TypeUpdate), Record: record}
}

// Name implements Query.
func (*TemplateUpdate) Name() string { return "TemplateUpdate" }

// TemplateRemove deletes a template.
type TemplateRemove struct {
	Base
	ID uint32
}

// NewTemplateRemove creates a TemplateRemove query.
func NewTemplateRemove(id uint32) *TemplateRemove {
	return &TemplateRemove{Base: newBase(TypeDelete), ID: id}
}

// Name implements Query.
func (*TemplateRemove) Name() string { return "TemplateRemove" }

// --- calllog ---

// CalllogGetCount counts call log entries.
type CalllogGetCount struct{ Base }

// NewCalllogGetCount creates a CalllogGetCount query.
func NewCalllogGetCount() *CalllogGetCount { return &CalllogGetCount{Base: newBase(TypeRead)} }

// Name implements Query.
func (*CalllogGetCount) Name() string { return "CalllogGetCount" }

// CalllogGetByContactID reads the calls of one contact.
type CalllogGetByContactID struct {
	Base
	ContactID uint32
}

// NewCalllogGetByContactID creates a CalllogGetByContactID query.
func NewCalllogGetByContactID(contactID uint32) *CalllogGetByContactID {
	return &CalllogGetByContactID{Base: newBase(TypeRead), ContactID: contactID}
}

// Name implements Query.
func (*CalllogGetByContactID) Name() string { return "CalllogGetByContactID" }

// CalllogGetLimited reads a page of calls, newest first.
type CalllogGetLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewCalllogGetLimited creates a CalllogGetLimited query.
func NewCalllogGetLimited(offset, limit uint32) *CalllogGetLimited {
	return &CalllogGetLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*CalllogGetLimited) Name() string { return "CalllogGetLimited" }

// CalllogRemove deletes a call log entry.
type CalllogRemove struct {
	Base
	ID uint32
}

// NewCalllogRemove creates a CalllogRemove query.
func NewCalllogRemove(id uint32) *CalllogRemove {
	return &CalllogRemove{Base: newBase(TypeDelete), ID: id}
}

// Name implements Query.
func (*CalllogRemove) Name() string { return "CalllogRemove" }

// --- contacts ---

// ContactGetCount counts contacts.
type ContactGetCount struct{ Base }

// NewContactGetCount creates a ContactGetCount query.
func NewContactGetCount() *ContactGetCount { return &ContactGetCount{Base: newBase(TypeRead)} }

// Name implements Query.
func (*ContactGetCount) Name() string { return "ContactGetCount" }

// ContactGetByID reads one contact.
type ContactGetByID struct {
	Base
	ID uint32
}

// NewContactGetByID creates a ContactGetByID query.
func NewContactGetByID(id uint32) *ContactGetByID {
	return &ContactGetByID{Base: newBase(TypeRead), ID: id}
}

// Name implements Query.
func (*ContactGetByID) Name() string { return "ContactGetByID" }

// ContactGetLimited reads a page of contacts ordered by name.
type ContactGetLimited struct {
	Base
	Offset uint32
	Limit  uint32
}

// NewContactGetLimited creates a ContactGetLimited query.
func NewContactGetLimited(offset, limit uint32) *ContactGetLimited {
	return &ContactGetLimited{Base: newBase(TypeRead), Offset: offset, Limit: limit}
}

// Name implements Query.
func (*ContactGetLimited) Name() string { return "ContactGetLimited" }

// ContactAdd inserts a contact unless one of its numbers is already taken.
type ContactAdd struct {
	Base
	Record Contact
}

// NewContactAdd creates a ContactAdd query.
func NewContactAdd(record Contact) *ContactAdd {
	return &ContactAdd{Base: newBase(TypeCreate), Record: record}
}

// Name implements Query.
func (*ContactAdd) Name() string { return "ContactAdd" }

// ContactUpdate replaces the contact with the same id.
type ContactUpdate struct {
	Base
	Record Contact
}

// NewContactUpdate creates a ContactUpdate query.
func NewContactUpdate(record Contact) *ContactUpdate {
	return &ContactUpdate{Base: newBase(TypeUpdate), Record: record}
}

// Name implements Query.
func (*ContactUpdate) Name() string { return "ContactUpdate" }

// ContactRemove deletes a contact.
type ContactRemove struct {
	Base
	ID uint32
}

// NewContactRemove creates a ContactRemove query.
func NewContactRemove(id uint32) *ContactRemove {
	return &ContactRemove{Base: newBase(TypeDelete), ID: id}
}

// Name implements Query.
func (*ContactRemove) Name() string { return "ContactRemove" }
