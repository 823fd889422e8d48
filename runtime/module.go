package runtime

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/resource"
)

type Module struct {
	funcTypesErr  error
	runtime       *Runtime
	funcTypes     map[string]*funcSignature
	witText       string
	handle        resource.Handle
	funcTypesOnce sync.Once
}

// Handle returns the module handle in the runtime registry.
func (m *Module) Handle() resource.Handle {
	return m.handle
}

func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	handle, err := m.runtime.engine.Instantiate(ctx, m.handle, nil)
	if err != nil {
		return nil, err
	}

	return &Instance{
		module: m,
		handle: handle,
	}, nil
}

// Exports returns the sorted names of the exported functions.
func (m *Module) Exports() ([]string, error) {
	return m.runtime.engine.Exports(m.handle)
}

// Close destroys the module handle. Instances already created keep
// running. Closing twice is a no-op.
func (m *Module) Close() error {
	return m.runtime.Registry().Destroy(m.handle)
}

type funcSignature struct {
	params  []wit.Type
	results []wit.Type
}

// FunctionTypes returns WIT param and result types for a function.
// Parses the WIT text lazily on first call.
func (m *Module) FunctionTypes(name string) ([]wit.Type, []wit.Type, error) {
	if m.witText == "" {
		return nil, nil, errors.NotFound(errors.PhaseRuntime, "WIT signature", name)
	}

	m.funcTypesOnce.Do(func() {
		m.funcTypes, m.funcTypesErr = parseWitFunctions(m.witText)
	})

	if m.funcTypesErr != nil {
		return nil, nil, m.funcTypesErr
	}

	sig, ok := m.funcTypes[name]
	if !ok {
		return nil, nil, errors.NotFound(errors.PhaseRuntime, "WIT signature", name)
	}

	return sig.params, sig.results, nil
}

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// parseWitFunctions extracts function signatures from WIT text.
// Pattern: [export] name: func(params) -> result;
func parseWitFunctions(witText string) (map[string]*funcSignature, error) {
	funcs := make(map[string]*funcSignature)

	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		name := match[1]
		paramsStr := strings.TrimSpace(match[2])
		resultStr := strings.TrimSpace(match[3])

		sig := &funcSignature{}

		for _, p := range splitParams(paramsStr) {
			typStr := p
			if idx := strings.LastIndex(p, ":"); idx != -1 {
				typStr = p[idx+1:]
			}
			t, err := parseWitType(typStr)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse param type "+typStr)
			}
			sig.params = append(sig.params, t)
		}

		if resultStr != "" && resultStr != "()" {
			parts := []string{resultStr}
			if strings.HasPrefix(resultStr, "(") && strings.HasSuffix(resultStr, ")") {
				parts = splitParams(resultStr[1 : len(resultStr)-1])
			}
			for _, part := range parts {
				t, err := parseWitType(part)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse result type "+part)
				}
				sig.results = append(sig.results, t)
			}
		}

		funcs[name] = sig
	}

	if len(funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no functions found in WIT text")
	}

	return funcs, nil
}

// splitParams splits parameter list, handling nested parens.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	flush := func() {
		if str := strings.TrimSpace(current.String()); str != "" {
			result = append(result, str)
		}
		current.Reset()
	}

	for _, ch := range s {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			flush()
			continue
		}
		current.WriteRune(ch)
	}
	flush()

	return result
}

func parseWitType(s string) (wit.Type, error) {
	return wit.ParseType(strings.TrimSpace(s))
}
