package envset

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Render writes s in dotenv format. Known keys are grouped under comment
// headers in documented order; unknown keys follow under "Custom".
func Render(w io.Writer, s Set) error {
	bw := bufio.NewWriter(w)
	first := true
	section := func(name string) {
		if !first {
			bw.WriteString("\n")
		}
		first = false
		fmt.Fprintf(bw, "# %s\n", name)
	}
	for _, g := range Groups {
		present := false
		for _, k := range g.Keys {
			if _, ok := s[k]; ok {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		section(g.Name)
		for _, k := range g.Keys {
			if v, ok := s[k]; ok {
				fmt.Fprintf(bw, "%s=%s\n", k, quote(v))
			}
		}
	}
	var extras []string
	for _, k := range s.Keys() {
		if !IsKnown(k) {
			extras = append(extras, k)
		}
	}
	if len(extras) > 0 {
		section("Custom")
		for _, k := range extras {
			fmt.Fprintf(bw, "%s=%s\n", k, quote(s[k]))
		}
	}
	return bw.Flush()
}

func quote(v string) string {
	if v == "" || !strings.ContainsAny(v, " \t\n\r#\"'\\$`") {
		return v
	}
	if !strings.ContainsAny(v, "'\n\r") {
		return "'" + v + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(v) + `"`
}
