package billing

import (
	"fmt"
	"strings"
)

// Module identifies the billing screen a bill originates from. The engine itself treats every
// module identically; collaborators use it to pick charge catalogs and surcharge fees.
type Module string

const (
	ModuleOPD       Module = "opd"
	ModuleIPD       Module = "ipd"
	ModuleAmbulance Module = "ambulance"
	ModulePathology Module = "pathology"
	ModuleRadiology Module = "radiology"
)

// Modules lists every supported billing module.
func Modules() []Module {
	return []Module{ModuleOPD, ModuleIPD, ModuleAmbulance, ModulePathology, ModuleRadiology}
}

// ParseModule normalises a module name.
func ParseModule(value string) (Module, error) {
	m := Module(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Modules() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown billing module %q", value)
}
