// File: internal/orchestrator/feature.go
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// FeatureGoal rewrites a feature description into a verification goal. The
// resulting session runs through the same loop as any other task; only the
// goal wording differs.
func FeatureGoal(feature, appPackage string) (schemas.Goal, error) {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return schemas.Goal{}, fmt.Errorf("%w: feature description must not be empty", schemas.ErrInvalidGoal)
	}
	return schemas.Goal{
		Text:       fmt.Sprintf("Verify that %s works correctly and report any defects you observe along the way.", feature),
		AppPackage: appPackage,
	}, nil
}
