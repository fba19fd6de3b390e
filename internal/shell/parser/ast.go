package parser

import (
	"fmt"
	"strings"
)

// Operator joins a pipeline to the one that follows it.
type Operator int

const (
	OpEnd        Operator = iota // last pipeline of the line
	OpSequence                   // ;
	OpAnd                        // &&
	OpOr                         // ||
	OpBackground                 // &
)

func (o Operator) String() string {
	switch o {
	case OpSequence:
		return ";"
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpBackground:
		return "&"
	default:
		return ""
	}
}

// RedirectMode selects how output redirection treats an existing file.
type RedirectMode int

const (
	Overwrite RedirectMode = iota // >
	Append                        // >>
)

// Redirect is an output redirection target.
type Redirect struct {
	Mode RedirectMode
	Path string
}

// Arg is one argument word. Quoted words are never glob expanded.
type Arg struct {
	Value  string
	Quoted bool
}

// Segment is one command of a pipeline.
type Segment struct {
	Name string
	Args []Arg
}

// Values returns the argument strings of s.
func (s Segment) Values() []string {
	out := make([]string, len(s.Args))
	for i, a := range s.Args {
		out[i] = a.Value
	}
	return out
}

func (s Segment) String() string {
	parts := append([]string{s.Name}, s.Values()...)
	return strings.Join(parts, " ")
}

// Pipeline is a chain of segments plus its redirections.
type Pipeline struct {
	Segments      []Segment
	InputRedirect string
	Output        *Redirect
	Background    bool
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.String()
	}
	out := strings.Join(parts, " | ")
	if p.InputRedirect != "" {
		out += " < " + p.InputRedirect
	}
	if p.Output != nil {
		op := ">"
		if p.Output.Mode == Append {
			op = ">>"
		}
		out += " " + op + " " + p.Output.Path
	}
	return out
}

// Unit is a pipeline and the operator that follows it.
type Unit struct {
	Pipeline *Pipeline
	Operator Operator
}

// ParseError reports malformed input. Nothing is executed when parsing fails.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

func newError(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
