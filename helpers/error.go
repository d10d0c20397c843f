package helpers

import (
	"strings"

	"github.com/juju/errors"
)

// FoldErrors joins non-nil errors into one.
// Single error is returned as is, so errors.Is* checks still work on it.
func FoldErrors(errs []error) error {
	var first error
	n := 0
	for _, e := range errs {
		if e != nil {
			if first == nil {
				first = e
			}
			n++
		}
	}
	switch n {
	case 0:
		return nil
	case 1:
		return first
	}
	ss := make([]string, 0, n)
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	return errors.New(strings.Join(ss, "\n"))
}
