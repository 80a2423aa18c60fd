package signup

import (
	"regexp"
	"strings"
)

// phonePattern accepts ten digits with an optional 1-3 digit country code,
// optional brackets around the area code and space or dash separators.
var phonePattern = regexp.MustCompile(`^(\+?\d{1,3}[\s-]?)?\(?\d{3}\)?[\s-]?\d{3}[\s-]?\d{2}[\s-]?\d{2}$`)

// LooksLikePhone reports whether s matches the loose phone pattern.
// It is not a validity check.
func LooksLikePhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}
