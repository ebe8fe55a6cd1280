package ingest

import (
	"fmt"
	"sync"

	"github.com/ohler55/ojg/jp"
)

// JsonWalker implements Walker with JSONPath selectors. Compiled
// expressions are cached per selector, since every document opened by a
// process is queried with the same pages selector.
type JsonWalker struct {
	mu    sync.Mutex
	exprs map[string]jp.Expr
}

func NewJsonWalker() *JsonWalker {
	return &JsonWalker{exprs: make(map[string]jp.Expr)}
}

// Query implements Walker.
func (w *JsonWalker) Query(root any, selector string) ([]Match, error) {
	x, err := w.compile(selector)
	if err != nil {
		return nil, err
	}
	results := x.Get(root)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = jsonMatch{value: r}
	}
	return matches, nil
}

func (w *JsonWalker) compile(selector string) (jp.Expr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if x, ok := w.exprs[selector]; ok {
		return x, nil
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("pages selector %q: %w", selector, err)
	}
	w.exprs[selector] = x
	return x, nil
}

type jsonMatch struct {
	value any
}

// Object implements Match.
func (m jsonMatch) Object() (map[string]any, bool) {
	obj, ok := m.value.(map[string]any)
	return obj, ok
}

// Raw implements Match.
func (m jsonMatch) Raw() any { return m.value }
