package synthesis

import "strings"

// iniKV is one key in an ini section; rendering preserves declaration
// order so output is stable across syntheses.
type iniKV struct {
	Key   string
	Value string
}

// iniSection is one [section] block.
type iniSection struct {
	Name string
	Keys []iniKV
}

// renderINI renders sections in the given order, one blank line after
// each, matching the workload's expected configuration format.
func renderINI(sections []iniSection) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString("[")
		b.WriteString(s.Name)
		b.WriteString("]\n")
		for _, kv := range s.Keys {
			b.WriteString(kv.Key)
			b.WriteString(" = ")
			b.WriteString(kv.Value)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
