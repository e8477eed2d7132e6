// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/methodmap/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a run summary into TOON format.
func Encode(s *model.Summary) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("run: %s", encodeValue(s.RunID)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(s.Root)))
	parts = append(parts, fmt.Sprintf("files: %d", s.Files))
	parts = append(parts, formatObject("records", []field{
		{"source", strconv.Itoa(s.SourceCount)},
		{"compiled", strconv.Itoa(s.CompiledCount)},
	}))
	parts = append(parts, formatObject("mapping", []field{
		{"common", strconv.Itoa(s.Common)},
		{"sourceOnly", strconv.Itoa(s.SourceOnly)},
		{"compiledOnly", strconv.Itoa(s.CompiledOnly)},
		{"invariantHeld", strconv.FormatBool(s.InvariantHeld)},
	}))
	parts = append(parts, formatObject("callgraph", []field{
		{"nodes", strconv.Itoa(s.Nodes)},
		{"edges", strconv.Itoa(s.Edges)},
	}))
	parts = append(parts, formatObject("pairing", []field{
		{"production", strconv.Itoa(s.Production)},
		{"tests", strconv.Itoa(s.Tests)},
		{"pairings", strconv.Itoa(s.Pairings)},
	}))

	var dupRows [][]string
	for _, d := range s.Duplicates {
		dupRows = append(dupRows, []string{
			string(d.Origin),
			strconv.Itoa(d.Total),
			strconv.Itoa(d.Unique),
			strconv.Itoa(d.Duplicate),
		})
	}
	parts = append(parts, formatTabular("duplicates", []string{"origin", "total", "unique", "duplicate"}, dupRows))

	var dupIDs [][]string
	for _, d := range s.Duplicates {
		for _, id := range d.Identities {
			dupIDs = append(dupIDs, []string{string(d.Origin), id})
		}
	}
	if len(dupIDs) > 0 {
		parts = append(parts, formatTabular("duplicated", []string{"origin", "identity"}, dupIDs))
	}

	var topRows [][]string
	for _, m := range s.TopMethods {
		topRows = append(topRows, []string{m.Identity, fmt.Sprintf("%.4f", m.Rank)})
	}
	parts = append(parts, formatTabular("top", []string{"identity", "rank"}, topRows))

	if len(s.Outputs) > 0 {
		var outRows [][]string
		for _, o := range s.Outputs {
			outRows = append(outRows, []string{o})
		}
		parts = append(parts, formatTabular("outputs", []string{"path"}, outRows))
	}

	var diagRows [][]string
	for _, d := range s.Diagnostics {
		diagRows = append(diagRows, []string{d.File, d.Method, d.Message})
	}
	parts = append(parts, formatTabular("diagnostics", []string{"file", "method", "message"}, diagRows))

	return strings.Join(parts, "\n")
}

type field struct{ key, value string }

// formatObject renders a nested object of primitive values. Values are
// emitted as given; callers pass already-literal numbers and booleans.
func formatObject(name string, fields []field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", name)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.key, f.value)
	}
	return b.String()
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
