package parser

import "strings"

// TokenType represents the type of a token
type TokenType int

const (
	WORD            TokenType = iota
	PIPE                      // |
	REDIRECT_OUT              // >
	REDIRECT_APPEND           // >>
	REDIRECT_IN               // <
	AND                       // &&
	OR                        // ||
	SEMICOLON                 // ;
	BACKGROUND                // &
	NEWLINE                   // \n
	EOF
)

func (t TokenType) String() string {
	switch t {
	case WORD:
		return "word"
	case PIPE:
		return "'|'"
	case REDIRECT_OUT:
		return "'>'"
	case REDIRECT_APPEND:
		return "'>>'"
	case REDIRECT_IN:
		return "'<'"
	case AND:
		return "'&&'"
	case OR:
		return "'||'"
	case SEMICOLON:
		return "';'"
	case BACKGROUND:
		return "'&'"
	case NEWLINE:
		return "newline"
	default:
		return "end of input"
	}
}

// Token represents a single token. Quoted is set when any part of a word
// came from quotes or an escape, which disables glob expansion for it.
type Token struct {
	Type     TokenType
	Value    string
	Quoted   bool
	Position int
}

// Tokenizer breaks input into tokens
type Tokenizer struct {
	input    string
	position int
	current  rune
}

// NewTokenizer creates a new tokenizer
func NewTokenizer(input string) *Tokenizer {
	t := &Tokenizer{input: input}

	// A leading shebang line is ignored.
	if strings.HasPrefix(input, "#!") {
		for t.position < len(input) && input[t.position] != '\n' {
			t.position++
		}
	}
	if t.position < len(input) {
		t.current = rune(input[t.position])
	}
	return t
}

func (t *Tokenizer) advance() {
	t.position++
	if t.position >= len(t.input) {
		t.current = 0
	} else {
		t.current = rune(t.input[t.position])
	}
}

func (t *Tokenizer) peek() rune {
	if t.position+1 >= len(t.input) {
		return 0
	}
	return rune(t.input[t.position+1])
}

// skipWhitespace skips spaces and tabs but not newlines
func (t *Tokenizer) skipWhitespace() {
	for t.isBlank() {
		t.advance()
	}
}

func (t *Tokenizer) isBlank() bool {
	switch t.current {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func (t *Tokenizer) skipComment() {
	for t.current != 0 && t.current != '\n' {
		t.advance()
	}
}

func (t *Tokenizer) atEnd() bool {
	return t.position >= len(t.input)
}

// readWord reads one shell word, joining bare text, quoted sections and
// backslash escapes that are not separated by whitespace.
func (t *Tokenizer) readWord() (string, bool, error) {
	var (
		b      strings.Builder
		quoted bool
	)
	for !t.atEnd() && !t.isSpecialChar() && !t.isBlank() {
		switch t.current {
		case '\'':
			s, err := t.readSingleQuoted()
			if err != nil {
				return "", false, err
			}
			b.WriteString(s)
			quoted = true
		case '"':
			s, err := t.readDoubleQuoted()
			if err != nil {
				return "", false, err
			}
			b.WriteString(s)
			quoted = true
		case '\\':
			start := t.position
			t.advance()
			if t.atEnd() {
				return "", false, newError(start, "dangling escape at end of input")
			}
			b.WriteByte(t.input[t.position])
			quoted = true
			t.advance()
		default:
			b.WriteByte(t.input[t.position])
			t.advance()
		}
	}
	return b.String(), quoted, nil
}

// readSingleQuoted reads a '...' section literally.
func (t *Tokenizer) readSingleQuoted() (string, error) {
	start := t.position
	t.advance()
	end := strings.IndexByte(t.input[t.position:], '\'')
	if end < 0 {
		return "", newError(start, "unterminated quoted string")
	}
	s := t.input[t.position : t.position+end]
	for i := 0; i <= end; i++ {
		t.advance()
	}
	return s, nil
}

// readDoubleQuoted reads a "..." section, interpreting escape sequences.
func (t *Tokenizer) readDoubleQuoted() (string, error) {
	start := t.position
	t.advance()

	var result strings.Builder
	for !t.atEnd() && t.current != '"' {
		if t.current == '\\' {
			t.advance()
			if t.atEnd() {
				return "", newError(start, "unterminated quoted string")
			}
			switch t.current {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case '\\', '"', '\'', '$':
				result.WriteRune(t.current)
			default:
				result.WriteByte('\\')
				result.WriteByte(t.input[t.position])
			}
		} else {
			result.WriteByte(t.input[t.position])
		}
		t.advance()
	}
	if t.atEnd() {
		return "", newError(start, "unterminated quoted string")
	}
	t.advance()
	return result.String(), nil
}

// isSpecialChar checks if current character is a special shell character
func (t *Tokenizer) isSpecialChar() bool {
	switch t.current {
	case '|', '>', '<', '&', ';', '\n':
		return true
	default:
		return false
	}
}

// NextToken returns the next token
func (t *Tokenizer) NextToken() (Token, error) {
	for {
		t.skipWhitespace()

		if t.atEnd() {
			return Token{Type: EOF, Position: t.position}, nil
		}
		if t.current == '#' {
			t.skipComment()
			continue
		}

		position := t.position
		switch t.current {
		case '\n':
			t.advance()
			return Token{Type: NEWLINE, Value: "\n", Position: position}, nil

		case ';':
			t.advance()
			return Token{Type: SEMICOLON, Value: ";", Position: position}, nil

		case '|':
			if t.peek() == '|' {
				t.advance()
				t.advance()
				return Token{Type: OR, Value: "||", Position: position}, nil
			}
			t.advance()
			return Token{Type: PIPE, Value: "|", Position: position}, nil

		case '&':
			if t.peek() == '&' {
				t.advance()
				t.advance()
				return Token{Type: AND, Value: "&&", Position: position}, nil
			}
			t.advance()
			return Token{Type: BACKGROUND, Value: "&", Position: position}, nil

		case '>':
			if t.peek() == '>' {
				t.advance()
				t.advance()
				return Token{Type: REDIRECT_APPEND, Value: ">>", Position: position}, nil
			}
			t.advance()
			return Token{Type: REDIRECT_OUT, Value: ">", Position: position}, nil

		case '<':
			t.advance()
			return Token{Type: REDIRECT_IN, Value: "<", Position: position}, nil

		default:
			word, quoted, err := t.readWord()
			if err != nil {
				return Token{}, err
			}
			return Token{Type: WORD, Value: word, Quoted: quoted, Position: position}, nil
		}
	}
}

// TokenizeAll returns all tokens from the input
func (t *Tokenizer) TokenizeAll() ([]Token, error) {
	var tokens []Token
	for {
		token, err := t.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		if token.Type == EOF {
			return tokens, nil
		}
	}
}
