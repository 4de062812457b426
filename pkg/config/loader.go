package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration files. Both CUE and YAML sources are checked
// against the same CUE schema, decoded over the defaults, and finally
// validated with struct tags.
type Loader struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewLoader creates a loader with the built-in schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}
	return &Loader{
		ctx:       ctx,
		schema:    schema,
		validator: validator.New(),
	}, nil
}

// Load reads path, applies VPCLAMBDA_* environment overrides and validates the
// result. The format is chosen by extension: .cue, .yaml, .yml or .json.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		cfg, err = l.ParseCUE(data, path)
	case ".yaml", ".yml", ".json":
		cfg, err = l.ParseYAML(data, path)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseCUE decodes CUE source over the defaults. The result is not validated
// with struct tags; call Validate for that.
func (l *Loader) ParseCUE(src []byte, filename string) (*Config, error) {
	val := l.ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Source: filename, Errors: convertCUEErrors(err)}
	}
	return l.decode(val, filename)
}

// ParseYAML decodes YAML (or JSON) source over the defaults.
func (l *Loader) ParseYAML(data []byte, filename string) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Source: filename, Errors: []ValidationError{{
			File:    filename,
			Message: fmt.Sprintf("failed to parse YAML: %v", err),
		}}}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	val := l.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return l.decode(val, filename)
}

func (l *Loader) decode(val cue.Value, filename string) (*Config, error) {
	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Source: filename, Errors: convertCUEErrors(err)}
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, &LoadError{Source: filename, Errors: convertCUEErrors(err)}
	}

	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks the struct-level constraints of cfg.
func (l *Loader) Validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Path:    fieldPath(fe.Namespace()),
				Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
			})
		}
		return &LoadError{Source: "config", Errors: out}
	}
	return nil
}

// fieldPath turns "Config.Lookup.TimeoutSeconds" into "Lookup.TimeoutSeconds".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}
