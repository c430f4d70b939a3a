// Package expressions evaluates JMESPath expressions against record documents.
package expressions

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator compiles expressions once and reuses them across calls.
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Evaluate evaluates a JMESPath expression against data
func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// Lookup evaluates a path and reports whether it produced a value.
// Documents decoded into structs are normalized through JSON first.
func (e *Evaluator) Lookup(expression string, document any) (any, bool, error) {
	data, err := normalize(document)
	if err != nil {
		return nil, false, err
	}
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return nil, false, err
	}
	return result, result != nil, nil
}

// Validate checks if an expression is valid
func (e *Evaluator) Validate(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	if compiled, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}

func normalize(document any) (any, error) {
	switch document.(type) {
	case nil, map[string]any, []any:
		return document, nil
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var data any
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return data, nil
}
