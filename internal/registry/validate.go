package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation error codes (R100-R199)
const (
	ErrCodeInvalid     = "R101" // country code must be 2-3 uppercase letters
	ErrNameEmpty       = "R102" // name must be non-empty
	ErrAliasEmpty      = "R103" // blank alias
	ErrAliasCollision  = "R104" // alias collides with another country
	ErrNothingEnabled  = "R105" // registry has no enabled country
	ErrDuplicateSource = "R106" // duplicate source within one country
)

var codePattern = regexp.MustCompile(`^[A-Z]{2,3}$`)

// ValidationError is one cross-registry rule violation.
type ValidationError struct {
	Country string `json:"country,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Country != "" {
		return fmt.Sprintf("[%s] country.%s: %s: %s", e.Code, e.Country, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the compiled registry against rules CUE shape
// checking cannot express. Returns all violations found, not just the
// first.
func Validate(r *Registry) []ValidationError {
	var errs []ValidationError

	// Alias and code namespaces are shared: a scope argument resolves
	// against both, so collisions would make resolution ambiguous.
	claimed := map[string]string{}
	for i := range r.Countries {
		claimed[r.Countries[i].Code] = r.Countries[i].Code
	}

	anyEnabled := false
	for i := range r.Countries {
		c := &r.Countries[i]
		if c.Enabled {
			anyEnabled = true
		}

		if !codePattern.MatchString(c.Code) {
			errs = append(errs, ValidationError{
				Country: c.Code,
				Field:   "code",
				Message: "must be 2-3 uppercase letters",
				Code:    ErrCodeInvalid,
			})
		}

		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, ValidationError{
				Country: c.Code,
				Field:   "name",
				Message: "must be non-empty",
				Code:    ErrNameEmpty,
			})
		}

		for _, alias := range c.Aliases {
			if strings.TrimSpace(alias) == "" {
				errs = append(errs, ValidationError{
					Country: c.Code,
					Field:   "aliases",
					Message: "blank alias",
					Code:    ErrAliasEmpty,
				})
				continue
			}
			if owner, taken := claimed[alias]; taken && owner != c.Code {
				errs = append(errs, ValidationError{
					Country: c.Code,
					Field:   "aliases",
					Message: fmt.Sprintf("alias %q already belongs to %s", alias, owner),
					Code:    ErrAliasCollision,
				})
				continue
			}
			claimed[alias] = c.Code
		}

		seen := map[string]bool{}
		for _, src := range c.Sources {
			if seen[src] {
				errs = append(errs, ValidationError{
					Country: c.Code,
					Field:   "sources",
					Message: fmt.Sprintf("duplicate source %q", src),
					Code:    ErrDuplicateSource,
				})
			}
			seen[src] = true
		}
	}

	if r.Len() > 0 && !anyEnabled {
		errs = append(errs, ValidationError{
			Field:   "country",
			Message: "no enabled country in registry",
			Code:    ErrNothingEnabled,
		})
	}

	return errs
}
