package catalog

import (
	"strings"

	"adline/internal/domain"
)

// DefaultFilter is the filter a fresh catalog shows.
const DefaultFilter = string(domain.StatusActive)

// Matches is the one status predicate used by load and filter. The Reviewing
// filter also matches the live voting statuses.
func Matches(status domain.AdStatus, filter string) bool {
	if strings.EqualFold(filter, string(domain.StatusReviewing)) {
		return status.IsReviewing()
	}
	return strings.EqualFold(string(status), filter)
}
