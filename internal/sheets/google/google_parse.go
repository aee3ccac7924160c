package google

import (
	"fmt"
	"strings"
)

// a1 builds a quoted A1 range, "'tab'!cells".
func a1(tab, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(tab, "'", "''"), cells)
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}

func fromValues(in [][]any) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
