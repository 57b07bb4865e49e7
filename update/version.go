package update

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pithecene-io/desklink/iox"
)

// Package member names.
const (
	VersionFile   = "version"
	ChecksumsFile = "checksums.txt"
	// Extension is the update package suffix.
	Extension = ".tar"
)

// maxVersionSize bounds the version member read from a package.
const maxVersionSize = 64 * 1024

// VersionInfo is the decoded version member of a package.
type VersionInfo struct {
	OS struct {
		VersionString string `json:"version_string"`
		Major         string `json:"major,omitempty"`
		Minor         string `json:"minor,omitempty"`
		Patch         string `json:"patch,omitempty"`
	} `json:"os_version"`
	Bootloader struct {
		Filename string `json:"filename,omitempty"`
	} `json:"bootloader"`
	GitRevision string `json:"git_revision,omitempty"`
	GitBranch   string `json:"git_branch,omitempty"`
	BuildDate   string `json:"build_date,omitempty"`
}

// Version returns os_version.version_string.
func (v *VersionInfo) Version() string {
	if v == nil {
		return ""
	}
	return v.OS.VersionString
}

// ParseVersionInfo decodes a version member.
func ParseVersionInfo(data []byte) (*VersionInfo, error) {
	var v VersionInfo
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", VersionFile, err)
	}
	return &v, nil
}

// errNoVersion means a package has no version member.
var errNoVersion = errors.New("package has no version member")

// VersionInfoFromFile reads the version member of the package at path
// without unpacking anything else.
func VersionInfoFromFile(path string) (*VersionInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	tr := tar.NewReader(f)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", path, errNoVersion)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if memberName(h.Name) != VersionFile {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxVersionSize))
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", VersionFile, path, err)
		}
		return ParseVersionInfo(data)
	}
}

// memberName strips the "./" prefix tar tools put on member names.
func memberName(name string) string {
	return strings.TrimPrefix(name, "./")
}

// CompareVersions compares dotted numeric versions such as "1.2.10".
// Missing components count as zero and a non-numeric suffix on a
// component ("3-rc1") is ignored. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	n := max(len(as), len(bs))
	for i := range n {
		x, y := versionPart(as, i), versionPart(bs, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	p := parts[i]
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(p[:end])
	if err != nil {
		return 0
	}
	return n
}
