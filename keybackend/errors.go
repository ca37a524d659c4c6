package keybackend

import (
	"fmt"

	"github.com/sagarc03/guestbook"
)

// ErrKeyNotFound is returned when the key id does not exist in the store.
// It matches guestbook.ErrNotFound.
var ErrKeyNotFound = fmt.Errorf("signing key not found: %w", guestbook.ErrNotFound)
