package normalize

import "strings"

// Role clusters. Determined from title semantics, not skills:
// "Java Backend Engineer" is BACKEND, not a "java" role.
const (
	RoleBackend      = "BACKEND"
	RoleFrontend     = "FRONTEND"
	RoleFullstack    = "FULLSTACK"
	RoleDataEngineer = "DATA_ENGINEER"
	RoleBackendData  = "BACKEND_DATA"
	RoleDevOps       = "DEVOPS"
	RoleMobile       = "MOBILE"
	RoleGenericSE    = "GENERIC_SE"
	RoleQA           = "QA"
	RoleUnknown      = "UNKNOWN"
)

// roleRule is one (keyword set, cluster) pair. Hybrid rules require
// every keyword present; single-signal rules require any one.
type roleRule struct {
	keywords []string
	cluster  string
	allOf    bool
}

// roleRules is evaluated strictly top to bottom; the first match wins.
// Ordering is a correctness invariant, not an optimization: hybrid
// clusters come before their components so "backend data engineer" does
// not collapse into plain BACKEND, and GENERIC_SE sits last so
// "software engineer - backend" still lands in BACKEND.
var roleRules = []roleRule{
	{keywords: []string{"backend", "data"}, cluster: RoleBackendData, allOf: true},
	{keywords: []string{"devops", "sre", "platform", "infrastructure", "cloud"}, cluster: RoleDevOps},
	{keywords: []string{"android", "ios", "mobile", "flutter", "react native"}, cluster: RoleMobile},
	{keywords: []string{"data engineer", "pipeline", "spark", "kafka", "airflow"}, cluster: RoleDataEngineer},
	{keywords: []string{"fullstack", "full stack", "full-stack"}, cluster: RoleFullstack},
	{keywords: []string{"frontend", "front end", "front-end", "ui developer", "react developer", "angular developer", "vue"}, cluster: RoleFrontend},
	{keywords: []string{"backend", "back end", "back-end", "api developer", "server side", "java developer", "spring", "node developer", "python developer", "golang"}, cluster: RoleBackend},
	{keywords: []string{"qa", "quality assurance", "test engineer", "automation engineer", "sdet"}, cluster: RoleQA},
	{keywords: []string{"software engineer", "software developer", "sde", "swe", "programmer"}, cluster: RoleGenericSE},
}

// Role maps a raw job title onto its role cluster. Titles that match no
// rule return UNKNOWN; such jobs are still stored, just excluded from
// analytics aggregation.
func Role(rawTitle string) string {
	title := strings.ToLower(strings.TrimSpace(rawTitle))
	if title == "" {
		return RoleUnknown
	}

	for _, rule := range roleRules {
		matches := 0
		for _, kw := range rule.keywords {
			if strings.Contains(title, kw) {
				matches++
			}
		}
		if rule.allOf {
			if matches == len(rule.keywords) {
				return rule.cluster
			}
			continue
		}
		if matches > 0 {
			return rule.cluster
		}
	}
	return RoleUnknown
}
