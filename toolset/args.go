package toolset

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jonwraymond/minachain/pipeline"
)

// Arguments arrive decoded from JSON, so numbers are usually float64.

func stringArg(args map[string]any, key string) (string, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgument, key, v)
	}
	return s, true, nil
}

func boolArg(args map[string]any, key string) (bool, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidArgument, key, v)
	}
	return b, true, nil
}

func uintArg(args map[string]any, key string) (uint64, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	bad := fmt.Errorf("%w: %s must be a non-negative integer, got %v", ErrInvalidArgument, key, v)
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return 0, false, bad
		}
		return uint64(n), true, nil
	case int:
		if n < 0 {
			return 0, false, bad
		}
		return uint64(n), true, nil
	case int64:
		if n < 0 {
			return 0, false, bad
		}
		return uint64(n), true, nil
	case uint64:
		return n, true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false, bad
		}
		return uint64(i), true, nil
	default:
		return 0, false, bad
	}
}

func stringsArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidArgument, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be an array of strings, got %T", ErrInvalidArgument, key, v)
	}
}

// sourceArg resolves the program text from "source" or "template".
func sourceArg(args map[string]any) (string, error) {
	source, hasSource, err := stringArg(args, "source")
	if err != nil {
		return "", err
	}
	name, hasTemplate, err := stringArg(args, "template")
	if err != nil {
		return "", err
	}

	switch {
	case hasSource && hasTemplate:
		return "", fmt.Errorf("%w: source and template are mutually exclusive", ErrInvalidArgument)
	case hasSource:
		return source, nil
	case hasTemplate:
		tpl, ok := pipeline.LookupTemplate(name)
		if !ok {
			return "", fmt.Errorf("%w: unknown template %q", ErrInvalidArgument, name)
		}
		return tpl.Source, nil
	default:
		return "", fmt.Errorf("%w: source or template is required", ErrInvalidArgument)
	}
}

// compileOptionsArg reads the compiler options. showAssembly is the default
// for the "showAssembly" argument, which keeps the compiler's assembly in
// the call's output.
func compileOptionsArg(args map[string]any, showAssembly bool) (pipeline.CompileOptions, error) {
	var opts pipeline.CompileOptions
	var err error
	if opts.Optimize, _, err = boolArg(args, "optimize"); err != nil {
		return opts, err
	}
	for key, dst := range map[string]**bool{
		"includeRuntime": &opts.IncludeRuntime,
		"preferLibrary":  &opts.PreferLibrary,
	} {
		v, ok, err := boolArg(args, key)
		if err != nil {
			return opts, err
		}
		if ok {
			*dst = pipeline.Bool(v)
		}
	}
	show, ok, err := boolArg(args, "showAssembly")
	if err != nil {
		return opts, err
	}
	if ok {
		showAssembly = show
	}
	opts.SuppressLive = !showAssembly
	return opts, nil
}

func simOptionsArg(args map[string]any) (pipeline.SimOptions, error) {
	var opts pipeline.SimOptions
	var err error
	if opts.Trace, _, err = boolArg(args, "trace"); err != nil {
		return opts, err
	}
	if opts.DumpRegisters, _, err = boolArg(args, "dumpRegisters"); err != nil {
		return opts, err
	}
	if opts.MaxSteps, _, err = uintArg(args, "maxSteps"); err != nil {
		return opts, err
	}
	if opts.MemoryBytes, _, err = uintArg(args, "memoryBytes"); err != nil {
		return opts, err
	}
	entry, ok, err := uintArg(args, "entry")
	if err != nil {
		return opts, err
	}
	if ok {
		opts.Entry = &entry
	}
	if opts.Extra, err = stringsArg(args, "args"); err != nil {
		return opts, err
	}
	return opts, nil
}

func analyzeOptionsArg(args map[string]any) (pipeline.AnalyzeOptions, error) {
	var opts pipeline.AnalyzeOptions
	for key, dst := range map[string]*bool{
		"onlyText":     &opts.OnlyText,
		"stats":        &opts.Stats,
		"json":         &opts.JSON,
		"stopAtEbreak": &opts.StopAtEbreak,
	} {
		v, _, err := boolArg(args, key)
		if err != nil {
			return opts, err
		}
		*dst = v
	}
	return opts, nil
}
