package tuner

import "github.com/anantzoid/kernel-tuner/internal/expr"

// restriction is one compiled pruning predicate. A source that failed to
// compile keeps a nil expression and rejects every configuration, so a broken
// restriction fails closed instead of widening the search space.
type restriction struct {
	src string
	e   *expr.Expr
}

func compileRestrictions(srcs []string, log Logger) []restriction {
	out := make([]restriction, 0, len(srcs))
	for _, src := range srcs {
		e, err := expr.Compile(src)
		if err != nil {
			log.Warn("restriction does not parse, excluding all configurations", "restriction", src, "error", err)
			out = append(out, restriction{src: src})
			continue
		}
		out = append(out, restriction{src: src, e: e})
	}
	return out
}

// satisfies reports whether c passes every restriction. Evaluation errors
// count as failure.
func satisfies(restrictions []restriction, c Config) bool {
	if len(restrictions) == 0 {
		return true
	}
	vars := c.vars()
	for _, r := range restrictions {
		if r.e == nil {
			return false
		}
		v, err := r.e.Eval(vars)
		if err != nil || v == 0 {
			return false
		}
	}
	return true
}
