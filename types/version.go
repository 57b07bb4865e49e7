package types

// Version is the desklink release version reported by the CLI and the
// session report.
const Version = "0.3.0"
