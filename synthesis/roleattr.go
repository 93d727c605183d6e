package synthesis

import (
	"fmt"
	"strings"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// clauseSeparator joins the role-mapping clauses.
const clauseSeparator = " || "

// RoleAttributePath builds the boolean expression mapping group-membership
// claims to workload roles. Admin clauses come first in input order, then
// editor clauses, then exactly one 'Viewer' fallback:
//
//	contains(groups[*], 'g1') && 'Admin' || ... || 'Viewer'
//
// When no groups are configured at all, the expression is absent (empty
// string) and no role-mapping field is emitted.
func RoleAttributePath(roles model.OAuthRoleConfig) string {
	if roles.Empty() {
		return ""
	}
	clauses := make([]string, 0, len(roles.AdminGroups)+len(roles.EditorGroups)+1)
	for _, g := range roles.AdminGroups {
		clauses = append(clauses, fmt.Sprintf("contains(groups[*], '%s') && 'Admin'", g))
	}
	for _, g := range roles.EditorGroups {
		clauses = append(clauses, fmt.Sprintf("contains(groups[*], '%s') && 'Editor'", g))
	}
	clauses = append(clauses, "'Viewer'")
	return strings.Join(clauses, clauseSeparator)
}
