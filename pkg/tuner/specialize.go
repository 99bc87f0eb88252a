package tuner

import (
	"fmt"
	"strings"
)

// SpecializeSource returns src with one #define per tunable prepended, so the
// compiler sees every parameter as a compile-time constant. The defines
// appear in a fixed physical order: grid_size_x, grid_size_y, then the
// configuration's parameters in domain declaration order, then the original
// source.
func SpecializeSource(src string, c Config, g Grid) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#define %s %d\n", DefineGridX, g.X)
	fmt.Fprintf(&b, "#define %s %d\n", DefineGridY, g.Y)
	for i, name := range c.names {
		fmt.Fprintf(&b, "#define %s %d\n", name, c.values[i])
	}
	b.WriteString(src)
	return b.String()
}

// InstanceName returns the per-configuration kernel name: the base name with
// the configuration identity appended. Giving every specialized variant a
// distinct entry point keeps compiler and driver caches from conflating them.
func InstanceName(base string, c Config) string {
	return base + "_" + c.Instance()
}

// buildSource specializes the request's source for c and renames the kernel
// to its instance name. The rename is plain text substitution, so occurrences
// of the base name inside comments or longer identifiers are rewritten too.
func buildSource(req Request, c Config, g Grid) (name, source string) {
	name = InstanceName(req.KernelName, c)
	source = SpecializeSource(req.Source, c, g)
	return name, strings.ReplaceAll(source, req.KernelName, name)
}
