package iox

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"
)

// CRC32Writer checksums (IEEE) and counts everything written through it.
// With a nil destination it only checksums.
type CRC32Writer struct {
	w io.Writer
	h hash.Hash32
	n int64
}

// NewCRC32Writer wraps w.
func NewCRC32Writer(w io.Writer) *CRC32Writer {
	return &CRC32Writer{w: w, h: crc32.NewIEEE()}
}

// Write implements io.Writer. The checksum covers only bytes accepted by
// the destination.
func (c *CRC32Writer) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	if c.w != nil {
		n, err = c.w.Write(p)
	}
	c.h.Write(p[:n])
	c.n += int64(n)
	return n, err
}

// Sum32 returns the checksum so far.
func (c *CRC32Writer) Sum32() uint32 { return c.h.Sum32() }

// Count returns the number of bytes written so far.
func (c *CRC32Writer) Count() int64 { return c.n }

// FormatCRC32 renders a checksum as eight upper-case hex digits.
func FormatCRC32(sum uint32) string {
	return fmt.Sprintf("%08X", sum)
}

// ParseCRC32 parses a hex checksum in either case.
func ParseCRC32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 8 {
		return 0, fmt.Errorf("invalid crc32 %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid crc32 %q: %w", s, err)
	}
	return uint32(v), nil
}

// FileCRC32 checksums the file at path and returns the sum and its size.
func FileCRC32(path string) (uint32, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer DiscardClose(f)

	w := NewCRC32Writer(nil)
	if _, err := io.Copy(w, f); err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return w.Sum32(), w.Count(), nil
}
