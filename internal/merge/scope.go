package merge

import (
	"fmt"
	"strings"

	"github.com/storywatch/storyfold/internal/registry"
)

// Scope is a resolved consolidation scope: the country codes a run
// will process, plus one pre-failed result per term that did not
// resolve to an enabled country. Rejections never touch the store;
// they surface only in the batch report.
type Scope struct {
	Countries []string
	Rejected  []CountryResult
}

// OK reports whether every requested term resolved.
func (s Scope) OK() bool {
	return len(s.Rejected) == 0
}

// ResolveScope maps requested scope terms onto registry codes. An
// empty request means every enabled country. Terms resolve by code or
// alias; duplicates collapse to one run. Unknown and disabled terms
// become config-failed results instead of aborting the whole batch,
// so one typo does not block the countries that did resolve.
func ResolveScope(reg *registry.Registry, requested []string) Scope {
	if len(requested) == 0 {
		return Scope{Countries: reg.EnabledCodes()}
	}

	var scope Scope
	seen := make(map[string]bool)
	for _, term := range requested {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		country, ok := reg.Resolve(term)
		if !ok {
			scope.Rejected = append(scope.Rejected,
				NewConfigResult(strings.ToUpper(term), fmt.Sprintf("country %q is not in the registry", term)))
			continue
		}
		if !country.Enabled {
			scope.Rejected = append(scope.Rejected,
				NewConfigResult(country.Code, fmt.Sprintf("country %s is disabled in the registry", country.Code)))
			continue
		}
		if seen[country.Code] {
			continue
		}
		seen[country.Code] = true
		scope.Countries = append(scope.Countries, country.Code)
	}
	return scope
}
