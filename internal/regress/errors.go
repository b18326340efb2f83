package regress

import (
	"fmt"
	"strings"
)

// CollinearityError reports a rank-deficient design matrix. It names the
// implicated columns so the caller can decide whether to refit a reduced
// specification; the estimator never drops columns silently.
type CollinearityError struct {
	Spec    string
	Columns []string
	Tol     float64
}

func (e *CollinearityError) Error() string {
	return fmt.Sprintf("specification %q: design matrix is rank deficient (tolerance %.1e); collinear columns: %s",
		e.Spec, e.Tol, strings.Join(e.Columns, ", "))
}
