package shortid

import (
	"crypto/rand"
	"fmt"
)

const defaultLenBytes = 6

// ID is a short random ID. It carries no cryptographic guarantees and is
// used for labelling recordings, log lines and filenames.
type ID []byte

// New generates a new short ID, of length 6 bytes.
func New() ID {
	p := make([]byte, defaultLenBytes)
	_, _ = rand.Read(p)
	return ID(p)
}

// String implements the fmt.Stringer interface.
func (id ID) String() string {
	return fmt.Sprintf("%x", []byte(id))
}
