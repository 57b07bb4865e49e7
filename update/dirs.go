package update

import "path/filepath"

// Dirs is the on-device layout the engine works in.
type Dirs struct {
	// Updates holds uploaded packages.
	Updates string
	// Tmp is the parent of per-run extraction directories.
	Tmp string
	// Current is the running OS tree.
	Current string
	// Previous is the OS tree kept for rollback.
	Previous string
	// User is the user data partition.
	User string
	// BootJSON is the boot descriptor; its checksum is written next to it
	// with a ".crc32" suffix.
	BootJSON string
}

// DirsFromRoot lays the directories out under a device root the way the
// phone partitions are mounted.
func DirsFromRoot(root string) Dirs {
	sys := filepath.Join(root, "sys")
	return Dirs{
		Updates:  filepath.Join(sys, "updates"),
		Tmp:      filepath.Join(sys, "tmp"),
		Current:  filepath.Join(sys, "current"),
		Previous: filepath.Join(sys, "previous"),
		User:     filepath.Join(root, "user"),
		BootJSON: filepath.Join(sys, "boot.json"),
	}
}

// CRC32Suffix is appended to a file name to name its checksum sidecar.
const CRC32Suffix = ".crc32"
