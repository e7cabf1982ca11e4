package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateActivity is returned when an activity with an already
// recorded identifier is appended to the provenance graph.
var ErrDuplicateActivity = errors.New("graph: activity already recorded")

// CycleError reports an acyclicity violation in the dependency graph.
// It carries the offending cycle's node names (plan commands, in cycle
// order) so the failure can be explained, not just rejected.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	if len(e.Nodes) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle: %s -> %s",
		strings.Join(e.Nodes, " -> "), e.Nodes[0])
}

// IsCycleError reports whether err is a cycle violation.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
