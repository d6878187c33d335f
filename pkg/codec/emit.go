package codec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	yamlv2 "gopkg.in/yaml.v2"
)

// Marshal renders an ordered mapping as the block-structured tree text:
// line oriented, two-space indent, unicode preserved, scalars quoted on
// demand per NeedsQuote.
func Marshal(root yamlv2.MapSlice) string {
	var b strings.Builder
	writeMapping(&b, root, 0)
	return b.String()
}

func writeMapping(b *strings.Builder, mapping yamlv2.MapSlice, indent int) {
	prefix := strings.Repeat(" ", indent)
	for _, item := range mapping {
		key := scalarString(item.Key)
		switch value := item.Value.(type) {
		case yamlv2.MapSlice:
			if len(value) == 0 {
				fmt.Fprintf(b, "%s%s: {}\n", prefix, key)
				continue
			}
			fmt.Fprintf(b, "%s%s:\n", prefix, key)
			writeMapping(b, value, indent+2)
		case []any:
			if len(value) == 0 {
				fmt.Fprintf(b, "%s%s: []\n", prefix, key)
				continue
			}
			fmt.Fprintf(b, "%s%s:\n", prefix, key)
			writeSequence(b, value, indent+2)
		default:
			fmt.Fprintf(b, "%s%s: %s\n", prefix, key, scalarString(value))
		}
	}
}

func writeSequence(b *strings.Builder, items []any, indent int) {
	prefix := strings.Repeat(" ", indent)
	for _, item := range items {
		switch value := item.(type) {
		case yamlv2.MapSlice:
			writeSequenceMapping(b, value, indent)
		case []any:
			fmt.Fprintf(b, "%s-\n", prefix)
			writeSequence(b, value, indent+2)
		default:
			fmt.Fprintf(b, "%s- %s\n", prefix, scalarString(value))
		}
	}
}

// writeSequenceMapping renders a mapping item of a sequence, first pair on
// the dash line and the rest aligned beneath it.
func writeSequenceMapping(b *strings.Builder, mapping yamlv2.MapSlice, indent int) {
	prefix := strings.Repeat(" ", indent)
	if len(mapping) == 0 {
		fmt.Fprintf(b, "%s- {}\n", prefix)
		return
	}
	for i, item := range mapping {
		lead := prefix + "  "
		if i == 0 {
			lead = prefix + "- "
		}
		key := scalarString(item.Key)
		switch value := item.Value.(type) {
		case yamlv2.MapSlice:
			fmt.Fprintf(b, "%s%s:\n", lead, key)
			writeMapping(b, value, indent+4)
		case []any:
			fmt.Fprintf(b, "%s%s:\n", lead, key)
			writeSequence(b, value, indent+4)
		default:
			fmt.Fprintf(b, "%s%s: %s\n", lead, key, scalarString(value))
		}
	}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		if NeedsQuote(v) {
			return quote(v)
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ambiguousTokens are the scalars a reader would resolve to booleans or
// null; they must be quoted to stay strings.
var ambiguousTokens = map[string]bool{
	"y": true, "n": true, "yes": true, "no": true,
	"true": true, "false": true, "on": true, "off": true,
	"null": true, "none": true, "~": true,
}

// NeedsQuote decides whether a string scalar must be double-quoted in the
// textual document to stay both human editable and unambiguous to a reader.
func NeedsQuote(s string) bool {
	if s == "" {
		return true
	}
	if ambiguousTokens[strings.ToLower(s)] {
		return true
	}
	if strings.TrimSpace(s) != s {
		return true
	}
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}
	if strings.ContainsAny(s, "¿¡?!\"'") {
		return true
	}
	// Internal whitespace, including newlines.
	if strings.ContainsAny(s, " \t\n\r") {
		return true
	}
	// Structural indicators that would change how a reader parses the line.
	if strings.ContainsAny(s, ":#{}[],&*|>%@`") {
		return true
	}
	switch s[0] {
	case '-', '?':
		return true
	}
	// Numeric-looking strings would come back as numbers.
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

var quoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
