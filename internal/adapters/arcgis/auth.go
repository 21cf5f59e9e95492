package arcgis

import (
	"errors"
	"strings"

	"github.com/samirrijal/floodroute/internal/core/domain"
)

var (
	// DefaultAuthErrorCodes are the ArcGIS token and permission codes.
	DefaultAuthErrorCodes = []int{498, 499, 401, 403}
	// DefaultAuthErrorMarkers match solvers that only report a message.
	DefaultAuthErrorMarkers = []string{"Invalid Token"}
)

// AuthErrorPredicate returns a classifier for credential failures.
// A *domain.SolverError matches when its HTTP status or upstream code is one
// of codes, or when its rendered message contains one of markers.
// Errors of any other type never match.
func AuthErrorPredicate(codes []int, markers []string) func(error) bool {
	codeSet := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		codeSet[c] = struct{}{}
	}
	markers = append([]string(nil), markers...)

	return func(err error) bool {
		var se *domain.SolverError
		if !errors.As(err, &se) {
			return false
		}
		if _, ok := codeSet[se.Code]; ok && se.Code != 0 {
			return true
		}
		if _, ok := codeSet[se.StatusCode]; ok && se.StatusCode != 0 {
			return true
		}
		msg := se.Error()
		for _, m := range markers {
			if m != "" && strings.Contains(msg, m) {
				return true
			}
		}
		return false
	}
}
