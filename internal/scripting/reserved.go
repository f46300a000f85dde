package scripting

import "regexp"

// identifierPattern is the whitelist from spec §4.C: a name is
// materializable as a program identifier only if it matches this
// pattern and is not a reserved word.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// reservedWords is the target language's reserved words plus the
// extra blacklist spec §4.C calls out explicitly.
var reservedWords = buildReservedWords()

func buildReservedWords() map[string]struct{} {
	words := []string{
		"do", "if", "in", "for", "let", "new", "try", "var", "case", "else",
		"enum", "eval", "null", "this", "true", "void", "with", "await",
		"break", "catch", "class", "const", "false", "super", "throw",
		"while", "yield", "delete", "export", "import", "public", "return",
		"static", "switch", "typeof", "default", "extends", "finally",
		"package", "private", "continue", "debugger", "function",
		"arguments", "interface", "protected", "implements", "instanceof",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isMaterializable reports whether name can be bound as a bare
// identifier in the generated header.
func isMaterializable(name string) bool {
	if !identifierPattern.MatchString(name) {
		return false
	}
	_, reserved := reservedWords[name]
	return !reserved
}
