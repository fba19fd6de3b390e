// Package parser turns a command line into pipelines joined by the
// sequencing operators ; && || and &, evaluated strictly left to right.
package parser

// Parser parses shell syntax into units
type Parser struct {
	tokenizer *Tokenizer
	current   Token
}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse is a shortcut for NewParser().Parse(input).
func Parse(input string) ([]Unit, error) {
	return NewParser().Parse(input)
}

// Parse returns the units of input in source order. An empty line yields no units.
func (p *Parser) Parse(input string) ([]Unit, error) {
	p.tokenizer = NewTokenizer(input)
	if err := p.advance(); err != nil {
		return nil, err
	}

	var units []Unit
	for {
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		if p.current.Type == EOF {
			return units, nil
		}
		pipeline, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}

		unit := Unit{Pipeline: pipeline}
		opTok := p.current
		switch opTok.Type {
		case EOF:
			unit.Operator = OpEnd
		case SEMICOLON, NEWLINE:
			unit.Operator = OpSequence
		case AND:
			unit.Operator = OpAnd
		case OR:
			unit.Operator = OpOr
		case BACKGROUND:
			unit.Operator = OpBackground
			pipeline.Background = true
		default:
			return nil, newError(opTok.Position, "unexpected %s", opTok.Type)
		}
		units = append(units, unit)
		if opTok.Type == EOF {
			return units, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if unit.Operator == OpAnd || unit.Operator == OpOr {
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
			if p.current.Type == EOF {
				return nil, newError(opTok.Position, "expected command after %s", opTok.Type)
			}
		}
	}
}

func (p *Parser) advance() error {
	token, err := p.tokenizer.NextToken()
	if err != nil {
		return err
	}
	p.current = token
	return nil
}

func (p *Parser) skipNewlines() error {
	for p.current.Type == NEWLINE {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// parsePipeline parses segment ('|' segment)*.
func (p *Parser) parsePipeline() (*Pipeline, error) {
	pipeline := &Pipeline{}
	for {
		seg, err := p.parseSegment(pipeline)
		if err != nil {
			return nil, err
		}
		pipeline.Segments = append(pipeline.Segments, seg)
		if p.current.Type != PIPE {
			return pipeline, nil
		}
		pipePos := p.current.Position
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type != WORD && !p.isRedirection() {
			return nil, newError(pipePos, "expected command after pipe")
		}
	}
}

// parseSegment reads words and redirections up to the next operator.
// Redirections apply to the whole pipeline.
func (p *Parser) parseSegment(pipeline *Pipeline) (Segment, error) {
	var (
		seg   Segment
		named bool
	)
	start := p.current.Position
	for {
		switch {
		case p.current.Type == WORD:
			if !named {
				seg.Name = p.current.Value
				named = true
			} else {
				seg.Args = append(seg.Args, Arg{Value: p.current.Value, Quoted: p.current.Quoted})
			}
			if err := p.advance(); err != nil {
				return Segment{}, err
			}
		case p.isRedirection():
			if err := p.parseRedirection(pipeline); err != nil {
				return Segment{}, err
			}
		default:
			if !named {
				return Segment{}, newError(start, "expected command, got %s", p.current.Type)
			}
			return seg, nil
		}
	}
}

func (p *Parser) isRedirection() bool {
	switch p.current.Type {
	case REDIRECT_IN, REDIRECT_OUT, REDIRECT_APPEND:
		return true
	default:
		return false
	}
}

func (p *Parser) parseRedirection(pipeline *Pipeline) error {
	redir := p.current
	if err := p.advance(); err != nil {
		return err
	}
	if p.current.Type != WORD || p.current.Value == "" {
		return newError(redir.Position, "expected filename after redirection %s", redir.Type)
	}
	target := p.current.Value
	switch redir.Type {
	case REDIRECT_IN:
		pipeline.InputRedirect = target
	case REDIRECT_OUT:
		pipeline.Output = &Redirect{Mode: Overwrite, Path: target}
	case REDIRECT_APPEND:
		pipeline.Output = &Redirect{Mode: Append, Path: target}
	}
	return p.advance()
}
