package scan

import "fmt"

// NotFoundError is returned when the requested scan does not exist in the store.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("scan %q not found", e.ID)
}
