package shell

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// DefaultMaxAliasDepth bounds alias rewrites of a single command word.
const DefaultMaxAliasDepth = 10

// AliasTable maps command names to their replacement text. It is shared by
// the foreground session and its background jobs.
type AliasTable struct {
	mu      sync.RWMutex
	aliases map[string]string
}

func NewAliasTable() *AliasTable {
	return &AliasTable{aliases: make(map[string]string)}
}

func (t *AliasTable) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.aliases[name]
	return v, ok
}

func (t *AliasTable) Set(name, value string) error {
	if name == "" || strings.ContainsFunc(name, func(r rune) bool { return r < 0x80 && !isWordByte(byte(r)) }) {
		return fmt.Errorf("'%s': invalid alias name", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aliases[name] = value
	return nil
}

func (t *AliasTable) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.aliases[name]
	delete(t.aliases, name)
	return ok
}

func (t *AliasTable) All() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.aliases)
}

// Expand rewrites word through the alias table until it names no alias. An
// alias whose value starts with its own name ("ls='ls -l'") stops there.
// Any other chain longer than maxDepth is reported as an *AliasLoopError.
func (t *AliasTable) Expand(word string, maxDepth int) (string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxAliasDepth
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur, suffix := word, ""
	for range maxDepth {
		value, ok := t.aliases[cur]
		if !ok {
			return joinWords(cur, suffix), nil
		}
		head, tail := leadingWord(value)
		suffix = joinWords(tail, suffix)
		if head == cur || head == "" {
			return joinWords(head, suffix), nil
		}
		cur = head
	}
	if _, ok := t.aliases[cur]; !ok {
		return joinWords(cur, suffix), nil
	}
	return "", &AliasLoopError{Name: word, Depth: maxDepth}
}

func leadingWord(s string) (head, tail string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func joinWords(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
