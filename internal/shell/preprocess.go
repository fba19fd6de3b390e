package shell

import (
	"strings"
)

// Preprocess rewrites a raw command line before it is parsed: $VAR and
// ${VAR} are replaced from env, then aliases are expanded at every command
// position. Text in single quotes and backslash escapes are left for the
// tokenizer.
func Preprocess(line string, env *Environment, aliases *AliasTable, maxAliasDepth int) (string, error) {
	expanded := ExpandVariables(line, func(name string) string {
		v, _ := env.Get(name)
		return v
	})
	return ExpandAliases(expanded, aliases, maxAliasDepth)
}

// ExpandVariables substitutes variable references using lookup. Unset
// variables expand to the empty string.
func ExpandVariables(line string, lookup func(string) string) string {
	if !strings.Contains(line, "$") {
		return line
	}
	var (
		b                  strings.Builder
		inSingle, inDouble bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && !inSingle && i+1 < len(line):
			b.WriteString(line[i : i+2])
			i++
			continue
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '$' && !inSingle:
			if name, n := varRef(line[i+1:]); n > 0 {
				b.WriteString(lookup(name))
				i += n
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// varRef returns the variable named at the start of s and how many bytes the
// reference occupies, or 0 when s does not start with a reference.
func varRef(s string) (string, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 || !ValidName(s[1:end]) {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && isNameByte(s[n], n == 0) {
		n++
	}
	return s[:n], n
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// ExpandAliases expands the leading word of every command in line. A word
// that is quoted, escaped or glued to a quote is never expanded.
func ExpandAliases(line string, aliases *AliasTable, maxDepth int) (string, error) {
	var (
		b                  strings.Builder
		inSingle, inDouble bool
		atCommand          = true
	)
	for i := 0; i < len(line); {
		c := line[i]
		if atCommand && !inSingle && !inDouble {
			if isBlank(c) {
				b.WriteByte(c)
				i++
				continue
			}
			atCommand = false
			j := i
			for j < len(line) && isWordByte(line[j]) {
				j++
			}
			if j > i && (j == len(line) || !isQuoteByte(line[j])) {
				exp, err := aliases.Expand(line[i:j], maxDepth)
				if err != nil {
					return "", err
				}
				b.WriteString(exp)
				i = j
				continue
			}
		}
		switch {
		case c == '\\' && !inSingle && i+1 < len(line):
			b.WriteString(line[i : i+2])
			i += 2
			continue
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case c == '#' && (i == 0 || isBlank(line[i-1])):
			end := strings.IndexByte(line[i:], '\n')
			if end < 0 {
				b.WriteString(line[i:])
				return b.String(), nil
			}
			b.WriteString(line[i : i+end])
			i += end
			continue
		case strings.IndexByte(";|&\n", c) >= 0:
			atCommand = true
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), nil
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isQuoteByte(c byte) bool {
	return c == '\'' || c == '"' || c == '\\'
}

func isWordByte(c byte) bool {
	if isBlank(c) || isQuoteByte(c) {
		return false
	}
	return strings.IndexByte("|&;<>\n", c) < 0
}
