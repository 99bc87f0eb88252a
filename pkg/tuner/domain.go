package tuner

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Domain is an ordered set of tunable parameters, each with the candidate
// values the sweep may assign to it. The zero value is an empty domain whose
// cartesian product is a single configuration with no parameters.
type Domain struct {
	names  []string
	values [][]int64
}

// Add appends a parameter with its candidate values. Parameter names must be
// unique within the domain and every parameter needs at least one value.
func (d *Domain) Add(name string, values ...int64) error {
	if name == "" {
		return fmt.Errorf("parameter name must not be empty")
	}
	if len(values) == 0 {
		return fmt.Errorf("parameter %q has no candidate values", name)
	}
	if slices.Contains(d.names, name) {
		return fmt.Errorf("duplicate parameter %q", name)
	}
	d.names = append(d.names, name)
	d.values = append(d.values, slices.Clone(values))
	return nil
}

// Len returns the number of parameters in the domain.
func (d *Domain) Len() int { return len(d.names) }

// Names returns the parameter names in declaration order.
func (d *Domain) Names() []string { return slices.Clone(d.names) }

// Size returns the number of configurations in the cartesian product.
func (d *Domain) Size() int64 {
	n := int64(1)
	for _, vs := range d.values {
		n *= int64(len(vs))
	}
	return n
}

// Configs yields every configuration of the domain in deterministic order.
// Parameters advance like an odometer: the last-declared parameter varies
// fastest. The sequence is lazy and can be iterated more than once.
func (d *Domain) Configs() iter.Seq[Config] {
	return func(yield func(Config) bool) {
		if len(d.names) == 0 {
			yield(Config{})
			return
		}
		idx := make([]int, len(d.names))
		for {
			vals := make([]int64, len(d.names))
			for i := range d.names {
				vals[i] = d.values[i][idx[i]]
			}
			if !yield(Config{names: d.names, values: vals}) {
				return
			}
			i := len(idx) - 1
			for i >= 0 {
				idx[i]++
				if idx[i] < len(d.values[i]) {
					break
				}
				idx[i] = 0
				i--
			}
			if i < 0 {
				return
			}
		}
	}
}

// Single returns the domain's sole configuration. It fails unless every
// parameter has exactly one candidate value.
func (d *Domain) Single() (Config, error) {
	vals := make([]int64, len(d.names))
	for i, name := range d.names {
		if n := len(d.values[i]); n != 1 {
			return Config{}, fmt.Errorf("parameter %q has %d candidate values, want exactly one", name, n)
		}
		vals[i] = d.values[i][0]
	}
	return Config{names: d.names, values: vals}, nil
}

// Config is one concrete assignment of a value to every parameter of a
// domain, in the domain's declaration order.
type Config struct {
	names  []string
	values []int64
}

// Len returns the number of parameters in the configuration.
func (c Config) Len() int { return len(c.names) }

// Names returns the parameter names in declaration order.
func (c Config) Names() []string { return slices.Clone(c.names) }

// Value returns the value assigned to the named parameter.
func (c Config) Value(name string) (int64, bool) {
	for i, n := range c.names {
		if n == name {
			return c.values[i], true
		}
	}
	return 0, false
}

// Instance returns the configuration's canonical identity: its values joined
// by underscores, in declaration order.
func (c Config) Instance() string {
	parts := make([]string, len(c.values))
	for i, v := range c.values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, "_")
}

// String renders the configuration as comma-separated name=value pairs.
func (c Config) String() string {
	var b strings.Builder
	for i, n := range c.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(c.values[i], 10))
	}
	return b.String()
}

// vars returns the configuration as bindings for expression evaluation.
func (c Config) vars() map[string]int64 {
	m := make(map[string]int64, len(c.names))
	for i, n := range c.names {
		m[n] = c.values[i]
	}
	return m
}
