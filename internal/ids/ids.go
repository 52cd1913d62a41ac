package ids

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier used for grant records
// and scheduled revocation entries. ULIDs order by creation time, which keeps
// storage scans and log correlation cheap.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
