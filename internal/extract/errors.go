package extract

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrExtractionTimeout is returned when the pipeline deadline passes before
// every enabled extractor has finished. No partial result accompanies it.
var ErrExtractionTimeout = eris.New("extract: extraction timed out")

// PartialFailure records one extractor category that failed. The category
// is omitted from the result; the rest of the page is still returned.
type PartialFailure struct {
	Category string
	Err      error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("extract: %s extractor failed: %v", e.Category, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }
