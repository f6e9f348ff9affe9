package recordstore

import (
	"fmt"
	"strings"
)

// Filter helpers build the store's simple boolean filter expressions,
// e.g. (ispending=true) or (hire_id="h1" && driver_id="d2").

func Eq(field string, value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf(`%s=%q`, field, v)
	case bool:
		return fmt.Sprintf("%s=%t", field, v)
	default:
		return fmt.Sprintf("%s=%v", field, v)
	}
}

func And(terms ...string) string {
	return group(terms, " && ")
}

func Or(terms ...string) string {
	return group(terms, " || ")
}

func group(terms []string, sep string) string {
	if len(terms) == 0 {
		return ""
	}
	return "(" + strings.Join(terms, sep) + ")"
}
