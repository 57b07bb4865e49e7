package update

import "fmt"

// State is the phase an update session is in.
type State int

// Session states, in pipeline order.
const (
	StateInitial State = iota
	StateUpdateFileSet
	StateCreatingDirectories
	StateExtractingFiles
	StateChecksumVerification
	StateVersionVerification
	StateUpdatingBootloader
	StatePreparingRoot
	StateReadyForReset
)

var stateNames = [...]string{
	StateInitial:              "Initial",
	StateUpdateFileSet:        "UpdateFileSet",
	StateCreatingDirectories:  "CreatingDirectories",
	StateExtractingFiles:      "ExtractingFiles",
	StateChecksumVerification: "ChecksumVerification",
	StateVersionVerification:  "VersionVerification",
	StateUpdatingBootloader:   "UpdatingBootloader",
	StatePreparingRoot:        "PreparingRoot",
	StateReadyForReset:        "ReadyForReset",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown update state %q", b)
}

// MarshalText encodes the code by name.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a code name.
func (c *Code) UnmarshalText(b []byte) error {
	for code, name := range codeNames {
		if name == string(b) {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown update code %q", b)
}

// Stats is the progress snapshot sent with every notification.
type Stats struct {
	State                 State  `json:"state"`
	FileExtracted         string `json:"fileExtracted,omitempty"`
	FileExtractedSize     int64  `json:"fileExtractedSize"`
	CurrentExtractedBytes int64  `json:"currentExtractedBytes"`
	TotalBytes            int64  `json:"totalBytes"`
	MessageText           string `json:"messageText,omitempty"`
}

// EventKind distinguishes progress from failure notifications.
type EventKind int

// Event kinds.
const (
	EventInform EventKind = iota
	EventError
)

func (k EventKind) String() string {
	if k == EventError {
		return "error"
	}
	return "inform"
}

// Event is a notification from a running session.
type Event struct {
	Kind  EventKind
	Code  Code
	Stats Stats
}

// FileInfo describes one extracted package member.
type FileInfo struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	CRC32 uint32 `json:"crc32"`
}
