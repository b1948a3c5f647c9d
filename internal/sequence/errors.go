package sequence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smokyabdulrahman/prayerd/internal/prayer"
)

// ErrExhausted means the rolling window has no upcoming prayer even after
// advancing; the raw data buffer needs a sync.
var ErrExhausted = errors.New("sequence exhausted: no upcoming prayer in window")

// MissingDataError reports raw days absent from persistence.
type MissingDataError struct {
	Kind  prayer.Kind
	Dates []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing raw prayer data for %s sequence: %s", e.Kind, strings.Join(e.Dates, ", "))
}
