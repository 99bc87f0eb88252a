//go:build cgo && unix

package hostcc

import (
	"fmt"
	"strings"
)

// launchPrefix is prepended to the kernel name to form the exported entry
// point of the generated shared object.
const launchPrefix = "kt_launch_"

type elemKind int

const (
	kindInt32 elemKind = iota
	kindUint32
	kindInt64
	kindFloat32
	kindFloat64
)

func (k elemKind) size() int {
	switch k {
	case kindInt32, kindUint32, kindFloat32:
		return 4
	default:
		return 8
	}
}

func (k elemKind) cType() string {
	switch k {
	case kindInt32:
		return "int32_t"
	case kindUint32:
		return "uint32_t"
	case kindInt64:
		return "int64_t"
	case kindFloat32:
		return "float"
	default:
		return "double"
	}
}

type argSpec struct {
	slice bool
	kind  elemKind
}

// trampoline returns the C entry point appended to every kernel source.
// Buffer arguments are passed as untyped pointers, which C converts to the
// kernel's own pointer parameter types; scalars are dereferenced with the
// width they were staged at. The kernel's float return value, its
// self-measured runtime in milliseconds, is widened to double.
func trampoline(name string, spec []argSpec) string {
	var b strings.Builder
	b.WriteString("\n#include <stdint.h>\n\n")
	fmt.Fprintf(&b, "double %s%s(void **argv) {\n", launchPrefix, name)
	fmt.Fprintf(&b, "\treturn (double)%s(", name)
	for i, s := range spec {
		if i > 0 {
			b.WriteString(", ")
		}
		if s.slice {
			fmt.Fprintf(&b, "argv[%d]", i)
		} else {
			fmt.Fprintf(&b, "*(%s *)argv[%d]", s.kind.cType(), i)
		}
	}
	b.WriteString(");\n}\n")
	return b.String()
}
