package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gorla/domain/tally"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex digits, for log lines
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// ComputeTableHash fingerprints a vote table independently of row order
func ComputeTableHash(t *tally.Table) Hash {
	lines := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		lines = append(lines, fmt.Sprintf("%s\x1f%s\x1f%s\x1f%d", row.Table, row.Candidate, row.Party, row.Votes))
	}
	sort.Strings(lines)

	var data strings.Builder
	for _, line := range lines {
		data.WriteString(line)
		data.WriteByte('\n')
	}
	return NewHash([]byte(data.String()))
}
