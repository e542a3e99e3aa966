package analyzer

import (
	"strings"
)

// Import is one import statement recovered from a source file.
type Import struct {
	// Module is the dotted target after the leading dots of a relative
	// import, empty for forms like "from . import x".
	Module string
	// Names are the imported members of a from-import. Plain imports and
	// star imports carry no names.
	Names []string
	// Star marks "from x import *".
	Star bool
	// Level counts the leading dots of a relative import.
	Level int
	// Line is the 1-based line the statement starts on.
	Line int
}

// scanSource extracts import statements from source text. The scan is
// textual and flow-insensitive: imports inside functions and conditional
// blocks count, imports inside strings and comments do not. Statements
// may span lines through backslash continuations and parenthesized
// name lists.
func scanSource(src string) []Import {
	var (
		imports []Import
		triple  string
	)

	lines := strings.Split(src, "\n")

	for i := 0; i < len(lines); i++ {
		lineNo := i + 1

		var code string

		code, triple = stripLine(strings.TrimSuffix(lines[i], "\r"), triple)

		for needsContinuation(code) && i+1 < len(lines) {
			i++

			var next string

			next, triple = stripLine(strings.TrimSuffix(lines[i], "\r"), triple)
			code = joinContinuation(code, next)
		}

		// A single physical line may hold several statements.
		for _, stmt := range strings.Split(code, ";") {
			imports = append(imports, parseImport(strings.TrimSpace(stmt), lineNo)...)
		}
	}

	return imports
}

// stripLine removes comments and string literals from one physical line.
// triple is the active triple-quote delimiter carried across lines, empty
// when the line starts outside any string.
func stripLine(line, triple string) (string, string) {
	var b strings.Builder

	pos := 0

	if triple != "" {
		end := strings.Index(line, triple)
		if end < 0 {
			return "", triple
		}

		pos = end + len(triple)
	}

	for pos < len(line) {
		c := line[pos]

		switch {
		case c == '#':
			return b.String(), ""
		case c == '\'' || c == '"':
			delim := string(c)
			if strings.HasPrefix(line[pos:], delim+delim+delim) {
				end := strings.Index(line[pos+3:], delim+delim+delim)
				if end < 0 {
					return b.String(), delim + delim + delim
				}

				pos += 3 + end + 3

				continue
			}

			pos = skipString(line, pos)
		default:
			b.WriteByte(c)
			pos++
		}
	}

	return b.String(), ""
}

// skipString advances past a single-quoted string literal starting at pos,
// honoring backslash escapes. An unterminated literal consumes the rest
// of the line.
func skipString(line string, pos int) int {
	quote := line[pos]

	for i := pos + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}

	return len(line)
}

// needsContinuation reports whether the statement is syntactically
// unfinished: a trailing backslash or an unclosed parenthesized list.
func needsContinuation(code string) bool {
	trimmed := strings.TrimRight(code, " \t")
	if !isImportStatement(trimmed) {
		return false
	}

	if strings.HasSuffix(trimmed, "\\") {
		return true
	}

	return strings.Count(code, "(") > strings.Count(code, ")")
}

func joinContinuation(code, next string) string {
	trimmed := strings.TrimRight(code, " \t")
	trimmed = strings.TrimSuffix(trimmed, "\\")

	return trimmed + " " + strings.TrimSpace(next)
}

func isImportStatement(code string) bool {
	stmt := strings.TrimSpace(code)

	return hasKeyword(stmt, "import") || hasKeyword(stmt, "from")
}

// hasKeyword reports whether stmt starts with the keyword followed by a
// break, so "importlib.reload(m)" is not mistaken for an import.
func hasKeyword(stmt, keyword string) bool {
	if !strings.HasPrefix(stmt, keyword) {
		return false
	}

	rest := stmt[len(keyword):]

	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '.' || rest[0] == '('
}

// parseImport turns one stripped statement into import records.
// Malformed statements are skipped: a text scan is best-effort and the
// interpreter is the authority on syntax.
func parseImport(stmt string, line int) []Import {
	switch {
	case hasKeyword(stmt, "import"):
		return parsePlainImport(strings.TrimSpace(stmt[len("import"):]), line)
	case hasKeyword(stmt, "from"):
		return parseFromImport(strings.TrimSpace(stmt[len("from"):]), line)
	default:
		return nil
	}
}

// parsePlainImport handles "import a.b as x, c".
func parsePlainImport(rest string, line int) []Import {
	var imports []Import

	for _, item := range strings.Split(rest, ",") {
		fields := strings.Fields(item)
		if len(fields) == 0 {
			continue
		}

		module := fields[0]
		if !validDotted(module) {
			continue
		}

		imports = append(imports, Import{Module: module, Line: line})
	}

	return imports
}

// parseFromImport handles "from .a.b import x as y, z", "from a import *"
// and the parenthesized list form.
func parseFromImport(rest string, line int) []Import {
	target, namesPart, ok := splitFromTarget(rest)
	if !ok {
		return nil
	}

	level := 0
	for level < len(target) && target[level] == '.' {
		level++
	}

	module := target[level:]
	if module != "" && !validDotted(module) {
		return nil
	}

	if level == 0 && module == "" {
		return nil
	}

	imp := Import{Module: module, Level: level, Line: line}

	namesPart = strings.TrimSpace(namesPart)
	if namesPart == "*" {
		imp.Star = true

		return []Import{imp}
	}

	namesPart = strings.TrimPrefix(namesPart, "(")
	namesPart = strings.TrimSuffix(namesPart, ")")

	for _, item := range strings.Split(namesPart, ",") {
		fields := strings.Fields(item)
		if len(fields) == 0 {
			continue
		}

		if name := fields[0]; validIdentifier(name) {
			imp.Names = append(imp.Names, name)
		}
	}

	if len(imp.Names) == 0 {
		return nil
	}

	return []Import{imp}
}

// splitFromTarget separates the module target from the name list of a
// from-import: ".a.b import x, y" becomes (".a.b", "x, y").
func splitFromTarget(rest string) (target, names string, ok bool) {
	idx := strings.Index(rest, "import")
	for idx >= 0 {
		before := rest[:idx]
		after := rest[idx+len("import"):]

		// The keyword must stand alone. A dot boundary covers the
		// "from .import x" form the grammar allows.
		boundedLeft := idx == 0 || before[len(before)-1] == ' ' || before[len(before)-1] == '\t' ||
			before[len(before)-1] == '.'
		boundedRight := after == "" || after[0] == ' ' || after[0] == '\t' || after[0] == '(' || after[0] == '*'

		if boundedLeft && boundedRight {
			return strings.TrimSpace(before), after, true
		}

		next := strings.Index(after, "import")
		if next < 0 {
			break
		}

		idx += len("import") + next
	}

	return "", "", false
}

func validDotted(name string) bool {
	if name == "" {
		return false
	}

	for _, segment := range strings.Split(name, ".") {
		if !validIdentifier(segment) {
			return false
		}
	}

	return true
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
