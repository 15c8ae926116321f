package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort lexicographically by creation
// time, which the OTP store relies on to find the most recent record, and
// they are safe for use as DynamoDB keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
