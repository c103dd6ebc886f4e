package tooling

import "strings"

// Arguments is an immutable, ordered list of command-line tokens.
// The zero value is an empty list.
type Arguments struct {
	tokens []string
}

func NewArguments(tokens ...string) Arguments {
	if len(tokens) == 0 {
		return Arguments{}
	}
	out := make([]string, len(tokens))
	copy(out, tokens)
	return Arguments{tokens: out}
}

// Add returns a new list with tokens appended. The receiver is not modified.
func (a Arguments) Add(tokens ...string) Arguments {
	return Concat(a, Arguments{tokens: tokens})
}

// Concat returns a's tokens followed by b's tokens.
func Concat(a, b Arguments) Arguments {
	if len(a.tokens)+len(b.tokens) == 0 {
		return Arguments{}
	}
	out := make([]string, 0, len(a.tokens)+len(b.tokens))
	out = append(out, a.tokens...)
	out = append(out, b.tokens...)
	return Arguments{tokens: out}
}

func (a Arguments) Len() int {
	return len(a.tokens)
}

// Tokens returns a copy of the underlying tokens.
func (a Arguments) Tokens() []string {
	if len(a.tokens) == 0 {
		return nil
	}
	out := make([]string, len(a.tokens))
	copy(out, a.tokens)
	return out
}

// String renders the tokens as a single command line, quoting tokens that
// contain whitespace.
func (a Arguments) String() string {
	quoted := make([]string, len(a.tokens))
	for i, tok := range a.tokens {
		quoted[i] = QuoteIfNeeded(tok)
	}
	return strings.Join(quoted, " ")
}

// QuoteIfNeeded wraps value in double quotes when it is empty or contains
// whitespace. Embedded double quotes are escaped.
func QuoteIfNeeded(value string) string {
	if value == "" {
		return `""`
	}
	if !strings.ContainsAny(value, " \t\n\r\v\f") {
		return value
	}
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}
