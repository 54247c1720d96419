// Package ids generates the opaque identifiers used across the kernel:
// hash-based cell ids (project-key hash + timestamp + randomness, per
// spec §3), "mem_"-prefixed memory ids, and uuid-based message and
// reservation ids.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewCellID derives an opaque cell id from the project key, a timestamp,
// and a random nonce, hashed down to a short base36 token and prefixed
// with the project's configured issue prefix (e.g. "bd-a3f8e9").
//
// Unlike the teacher's GenerateHashID, which derives candidates from
// title/description so that repeated retries are deterministic, this
// takes a caller-supplied timestamp and nonce: CreateBead passes
// time.Now() and the next value of a process-wide counter. No check
// against existing ids is made here or in CreateBead.
func NewCellID(projectKey, prefix string, now time.Time, nonce int64, length int) string {
	if length <= 0 || length > 12 {
		length = 6
	}
	h := sha256.New()
	h.Write([]byte(projectKey))
	h.Write([]byte(now.UTC().Format(time.RFC3339Nano)))
	fmt.Fprintf(h, "%d", nonce)
	sum := h.Sum(nil)

	token := encodeBase36(sum, length)
	if prefix == "" {
		prefix = "cell"
	}
	return prefix + "-" + token
}

func encodeBase36(sum []byte, length int) string {
	var n uint64
	for i := 0; i < 8 && i < len(sum); i++ {
		n = (n << 8) | uint64(sum[i])
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		sb.WriteByte(base36Alphabet[n%36])
		n /= 36
	}
	return sb.String()
}

// ChildCellID formats a hierarchical child cell id as "<parentID>.<n>".
func ChildCellID(parentID string, childNum int) string {
	return fmt.Sprintf("%s.%d", parentID, childNum)
}

// IsHierarchical reports whether id has the form "<parent>.<digits>",
// returning the parent portion when it does.
func IsHierarchical(id string) (parentID string, ok bool) {
	lastDot := strings.LastIndex(id, ".")
	if lastDot == -1 {
		return "", false
	}
	suffix := id[lastDot+1:]
	if suffix == "" {
		return "", false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return id[:lastDot], true
}

// NewMemoryID returns a short unique id prefixed "mem_", per spec §4.8.
func NewMemoryID() string {
	return "mem_" + hex.EncodeToString(randomBytes(8))
}

// NewMessageID returns a uuid-based message id.
func NewMessageID() string { return uuid.NewString() }

// NewReservationID returns a uuid-based reservation id.
func NewReservationID() string { return uuid.NewString() }

// NewSubscriptionID returns a uuid for a live stream subscription (§3 NEW).
func NewSubscriptionID() string { return uuid.NewString() }

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.New(rand.NewSource(time.Now().UnixNano())).Read(b)
	return b
}
