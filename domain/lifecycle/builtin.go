package lifecycle

import (
	"fmt"
	"sort"
)

// Builtin tables declared by the supported backends.
var builtin = map[string][]Rule{
	"mock": {
		On("start", "pending", "create"),
		Auto("pending", "running"),
		On("running", "running", "reboot"),
		On("running", "stopped", "stop"),
		On("stopped", "running", "start"),
		On("stopped", "finish", "destroy"),
	},
	"gogrid": {
		Auto("start", "pending"),
		Auto("pending", "running"),
		On("running", "stopped", "stop"),
		On("stopped", "running", "start"),
		On("running", "finish", "destroy"),
		On("stopped", "finish", "destroy"),
	},
	"rhevm": {
		On("start", "stopped", "create"),
		On("pending", "shutting_down", "stop"),
		Auto("pending", "running"),
		On("running", "pending", "reboot"),
		On("running", "shutting_down", "stop"),
		Auto("shutting_down", "stopped"),
		On("stopped", "pending", "start"),
		On("stopped", "finish", "destroy"),
	},
	"virtualbox": {
		On("start", "pending", "create"),
		Auto("pending", "running"),
		On("running", "stopped", "stop"),
		On("stopped", "running", "start"),
		On("stopped", "finish", "destroy"),
	},
}

// Builtin returns the machine declared by the named backend.
func Builtin(name string) (*Machine, error) {
	rules, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown lifecycle %q", name)
	}
	return New(rules)
}

// BuiltinNames lists the backends with a declared lifecycle.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
