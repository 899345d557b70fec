package source

import "fmt"

// ErrNotFound is the sentinel matched by errors.Is for any failed source
// resolution.
var ErrNotFound = fmt.Errorf("source not found")

// NotFoundError reports a (namespace, table) pair that is not declared in
// the catalog.
type NotFoundError struct {
	Namespace string
	Table     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s.%s is not declared in the source catalog", e.Namespace, e.Table)
}

// Is makes errors.Is(err, ErrNotFound) work for wrapped resolution errors.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
