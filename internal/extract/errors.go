package extract

import "fmt"

// FieldError reports that every strategy for one field was exhausted without
// a plausible value. Fatal for title and price; images and the size matrix
// degrade to empty values instead of raising it.
type FieldError struct {
	Field string
	URL   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("extraction failed for field %q on %s", e.Field, e.URL)
}
