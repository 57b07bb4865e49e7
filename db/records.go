package db

import "time"

// Repeat is a calendar event recurrence.
type Repeat uint32

// Recurrences.
const (
	RepeatNever Repeat = iota
	RepeatDaily
	RepeatWeekly
	RepeatBiweekly
	RepeatMonthly
	RepeatYearly
)

// ReminderNever disables the event reminder.
const ReminderNever uint32 = 0xFFFF

// Event is a calendar event record.
type Event struct {
	ID              uint32    `msgpack:"id"`
	UID             string    `msgpack:"uid"`
	Title           string    `msgpack:"title"`
	Start           time.Time `msgpack:"start"`
	End             time.Time `msgpack:"end"`
	Repeat          Repeat    `msgpack:"repeat"`
	ReminderMinutes uint32    `msgpack:"reminder"`
	ReminderFired   time.Time `msgpack:"reminder_fired"`
	ProviderType    string    `msgpack:"provider_type"`
	ProviderID      string    `msgpack:"provider_id"`
	ProviderICalUID string    `msgpack:"provider_ical_uid"`
}

// SMSType is the folder of a message.
type SMSType uint32

// Message types.
const (
	SMSTypeDraft   SMSType = 0x01
	SMSTypeFailed  SMSType = 0x02
	SMSTypeInbox   SMSType = 0x04
	SMSTypeOutbox  SMSType = 0x08
	SMSTypeQueued  SMSType = 0x10
	SMSTypeInput   SMSType = 0x12
	SMSTypeUnknown SMSType = 0xFF
)

// SMS is a text message record.
type SMS struct {
	ID          uint32  `msgpack:"id"`
	Date        uint32  `msgpack:"date"`
	DateSent    uint32  `msgpack:"date_sent"`
	ErrorCode   uint32  `msgpack:"error_code"`
	Body        string  `msgpack:"body"`
	Type        SMSType `msgpack:"type"`
	ThreadID    uint32  `msgpack:"thread_id"`
	ContactID   uint32  `msgpack:"contact_id"`
	PhoneNumber string  `msgpack:"phone_number"`
}

// Thread is a conversation record.
type Thread struct {
	ID             uint32  `msgpack:"id"`
	Date           uint32  `msgpack:"date"`
	MsgCount       uint32  `msgpack:"msg_count"`
	UnreadMsgCount uint32  `msgpack:"unread_msg_count"`
	Snippet        string  `msgpack:"snippet"`
	Type           SMSType `msgpack:"type"`
	ContactID      uint32  `msgpack:"contact_id"`
	PhoneNumber    string  `msgpack:"phone_number"`
}

// Template is a canned message body.
type Template struct {
	ID                 uint32 `msgpack:"id"`
	Text               string `msgpack:"text"`
	LastUsageTimestamp uint32 `msgpack:"last_usage"`
}

// CallType classifies a call log entry.
type CallType uint32

// Call types.
const (
	CallTypeNone CallType = iota
	CallTypeIncoming
	CallTypeOutgoing
	CallTypeMissed
	CallTypeRejected
)

// Calllog is a call log record.
type Calllog struct {
	ID           uint32   `msgpack:"id"`
	PhoneNumber  string   `msgpack:"phone_number"`
	Presentation uint32   `msgpack:"presentation"`
	Date         uint32   `msgpack:"date"`
	Duration     uint32   `msgpack:"duration"`
	Type         CallType `msgpack:"type"`
	Name         string   `msgpack:"name"`
	ContactID    uint32   `msgpack:"contact_id"`
	IsRead       bool     `msgpack:"is_read"`
}

// Contact is a phonebook record.
type Contact struct {
	ID              uint32   `msgpack:"id"`
	PrimaryName     string   `msgpack:"primary_name"`
	AlternativeName string   `msgpack:"alternative_name"`
	Numbers         []string `msgpack:"numbers"`
	Address         string   `msgpack:"address"`
	Favourite       bool     `msgpack:"favourite"`
	Blocked         bool     `msgpack:"blocked"`
}
