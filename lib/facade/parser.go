package facade

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Script Parser
// --------------------------------------------------------------------------

// The script syntax is deliberately small:
//
//	command  = word { blank word } ( newline | ";" )
//	word     = "{" literal "}" | '"' text '"' | text
//	text     = { char | "\" escape | "$" name | "${" name "}" | "[" script "]" }
//
// Lines starting with # are comments. Braces suppress all substitution and
// nest. Substitution results are never split into multiple words.

// parser walks a script and evaluates it command by command
type parser struct {
	src    string
	pos    int
	interp *Interp
}

// errIncomplete is returned when the script ends inside a brace, quote or bracket
type errIncomplete struct {
	what string
}

func (e *errIncomplete) Error() string {
	return "missing " + e.what
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isCommandEnd(c byte) bool {
	return c == '\n' || c == ';'
}

func isNameChar(c byte) bool {
	return c == '_' || c == ':' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// skipBlanks skips blanks and escaped newlines
func (p *parser) skipBlanks() {
	for !p.eof() {
		switch {
		case isBlank(p.peek()):
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "\\\n"):
			p.pos += 2
		default:
			return
		}
	}
}

// skipCommandSeparators skips whitespace, separators and comments between commands
func (p *parser) skipCommandSeparators() {
	for !p.eof() {
		c := p.peek()
		switch {
		case isBlank(c) || isCommandEnd(c):
			p.pos++
		case c == '#':
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// parseCommand reads the words of the next command.
// It returns nil at the end of the script.
func (p *parser) parseCommand() ([]string, error) {
	p.skipCommandSeparators()

	var words []string
	for {
		p.skipBlanks()
		if p.eof() || isCommandEnd(p.peek()) {
			return words, nil
		}
		word, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}
}

func (p *parser) parseWord() (string, error) {
	switch p.peek() {
	case '{':
		return p.parseBraced()
	case '"':
		p.pos++
		word, err := p.parseText(func(c byte) bool { return c == '"' })
		if err != nil {
			return "", err
		}
		if p.eof() {
			return "", &errIncomplete{what: `"`}
		}
		p.pos++
		if err := p.expectWordEnd("quote"); err != nil {
			return "", err
		}
		return word, nil
	default:
		return p.parseText(func(c byte) bool { return isBlank(c) || isCommandEnd(c) })
	}
}

// expectWordEnd fails if a closing brace or quote is directly followed by more text
func (p *parser) expectWordEnd(after string) error {
	if p.eof() || isBlank(p.peek()) || isCommandEnd(p.peek()) {
		return nil
	}
	return fmt.Errorf("extra characters after close-%s", after)
}

// parseBraced reads a {...} word literally, braces nest
func (p *parser) parseBraced() (string, error) {
	start := p.pos + 1
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch p.peek() {
		case '\\':
			p.pos++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				word := p.src[start:p.pos]
				p.pos++
				if err := p.expectWordEnd("brace"); err != nil {
					return "", err
				}
				return word, nil
			}
		}
	}
	return "", &errIncomplete{what: "close-brace"}
}

// parseText reads text with substitutions until stop matches or the script ends
func (p *parser) parseText(stop func(c byte) bool) (string, error) {
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		if stop(c) {
			break
		}
		switch c {
		case '\\':
			p.pos++
			if p.eof() {
				sb.WriteByte('\\')
				break
			}
			sb.WriteString(unescape(p.peek()))
			p.pos++
		case '$':
			value, err := p.parseVariable()
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
		case '[':
			result, err := p.parseSubstitution()
			if err != nil {
				return "", err
			}
			sb.WriteString(result)
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return sb.String(), nil
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\n':
		return " "
	default:
		return string(c)
	}
}

// parseVariable substitutes $name or ${name}. A lone $ is literal.
func (p *parser) parseVariable() (string, error) {
	p.pos++ // $

	var name string
	switch {
	case !p.eof() && p.peek() == '{':
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return "", &errIncomplete{what: "close-brace for variable name"}
		}
		name = p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
	default:
		start := p.pos
		for !p.eof() && isNameChar(p.peek()) {
			p.pos++
		}
		name = p.src[start:p.pos]
		if name == "" {
			return "$", nil
		}
	}
	return p.interp.variable(name)
}

// parseSubstitution evaluates a [script] and returns its result
func (p *parser) parseSubstitution() (string, error) {
	start := p.pos + 1
	depth := 0
	for ; !p.eof(); p.pos++ {
		switch p.peek() {
		case '\\':
			p.pos++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				inner := p.src[start:p.pos]
				p.pos++
				return p.interp.eval(inner)
			}
		}
	}
	return "", &errIncomplete{what: "close-bracket"}
}

// complete reports whether script ends outside of any brace, quote or
// bracket, i.e. whether it can be evaluated without reading more input
func complete(script string) bool {
	var (
		braces, brackets int
		quoted           bool
		atStart          = true
	)
	for i := 0; i < len(script); i++ {
		c := script[i]
		if atStart && c == '#' {
			for i < len(script) && script[i] != '\n' {
				i++
			}
			continue
		}
		atStart = (isCommandEnd(c) || (atStart && isBlank(c))) && braces == 0 && brackets == 0 && !quoted

		switch {
		case c == '\\':
			i++
		case braces > 0:
			if c == '{' {
				braces++
			} else if c == '}' {
				braces--
			}
		case c == '"':
			quoted = !quoted
		case c == '[':
			brackets++
		case c == ']' && brackets > 0:
			brackets--
		case c == '{' && !quoted:
			braces++
		}
	}
	return braces == 0 && brackets == 0 && !quoted
}
