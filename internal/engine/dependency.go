package engine

import "regexp"

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// ruleDependencies returns the subset of identifiers in exprText that name
// other rules (per ruleNames), excluding identifiers used as function
// calls. expr-lang doesn't expose a stable public AST-walking API outside
// its own packages, so dependency detection here is a lightweight textual
// scan: it only needs to decide membership against the known rule-name
// set, not fully parse the expression.
func ruleDependencies(exprText string, ruleNames map[string]bool) map[string]bool {
	deps := make(map[string]bool)
	matches := identifierPattern.FindAllStringIndex(exprText, -1)
	for _, loc := range matches {
		ident := exprText[loc[0]:loc[1]]
		if !ruleNames[ident] {
			continue
		}
		if isFunctionCall(exprText, loc[1]) {
			continue
		}
		deps[ident] = true
	}
	return deps
}

// isFunctionCall reports whether the identifier ending at index end is
// immediately followed (ignoring whitespace) by '(', i.e. used as a
// function call rather than a variable reference.
func isFunctionCall(text string, end int) bool {
	i := end
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i < len(text) && text[i] == '('
}
