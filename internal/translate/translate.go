// Package translate implements the word-substitution table applied to chat
// messages. The dictionary file holds one entry per line, plain word and
// substitute separated by a colon (`plain-word:bee-word`); it is loaded
// once at startup and never mutated afterwards.
package translate

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Table maps plain words to their substitutes. The zero value is an empty
// table that passes every token through unchanged.
type Table struct {
	words map[string]string
}

// NewTable builds a table from an in-memory mapping.
func NewTable(words map[string]string) *Table {
	t := &Table{words: make(map[string]string, len(words))}
	for k, v := range words {
		t.words[k] = v
	}
	return t
}

// LoadFile reads a dictionary file into a table.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	words := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		plain, substitute, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("parse dictionary: malformed line %q", line)
		}
		words[plain] = substitute
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	return &Table{words: words}, nil
}

// Len reports the number of dictionary entries.
func (t *Table) Len() int {
	return len(t.words)
}

// Word translates a single token: exact match first, then a lowercase
// fallback; unmatched tokens pass through unchanged.
func (t *Table) Word(token string) string {
	if sub, ok := t.words[token]; ok {
		return sub
	}
	if sub, ok := t.words[strings.ToLower(token)]; ok {
		return sub
	}
	return token
}

// Line translates every whitespace-separated token of text independently
// and joins the results with single spaces.
func (t *Table) Line(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}
	for i, token := range tokens {
		tokens[i] = t.Word(token)
	}
	return strings.Join(tokens, " ")
}
