package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCatalog is matched by every catalog construction failure.
var ErrInvalidCatalog = errors.New("invalid backend catalog")

// ValidationError lists every problem found while building a catalog.
type ValidationError struct {
	Kind     Kind
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s catalog: %s", e.Kind, strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrInvalidCatalog) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidCatalog
}
