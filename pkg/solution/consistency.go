package solution

import (
	"github.com/google/go-cmp/cmp"
	"reassign/pkg/problem"
)

var infoDiffOpts = cmp.Options{
	cmp.AllowUnexported(Info{}),
	cmp.Comparer(func(a, b *problem.Problem) bool { return a == b }),
}

// equalInfo reports whether a and b carry identical derived state,
// returning a human-readable diff for debug-mode assertion failures. The
// two must share the same *problem.Problem and initial-assignment slice;
// only the derived fields are expected to vary.
func equalInfo(a, b *Info) (bool, string) {
	diff := cmp.Diff(a, b, infoDiffOpts)
	if diff != "" {
		return false, diff
	}
	return true, ""
}
