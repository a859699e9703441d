package tools

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// UserDefinedSpec is a tool submission (spec.md §4.8's "user-defined
// tools"): a name, description, parameter schema, and an invocation
// target. Rather than executing untrusted source text, invocation is
// delegated to the Adapter passed to RegisterUserDefined (AdapterName is
// carried with the submission but not used to look one up) — the
// structural-validation approach SPEC_FULL.md calls for in place of the
// teacher's source-parsing validation, since this runtime has no sandboxed
// script interpreter to run submitted code in.
type UserDefinedSpec struct {
	Name            string
	Description     string
	ParameterSchema map[string]any
	AdapterName     string
}

// ValidationResult separates blocking offenses from non-blocking warnings
// (spec.md §4.8: "Tools failing validation are rejected with a structured
// error listing every offense; warnings ... do not block registration").
type ValidationResult struct {
	Offenses []string
	Warnings []string
}

func (r ValidationResult) Valid() bool { return len(r.Offenses) == 0 }

// Validate structurally checks a UserDefinedSpec: name and description
// present, parameter schema present and a well-formed JSON Schema document
// (compiled with jsonschema/v6, grounded on the `goadesign-goa-ai` example's
// `jsonschema.NewCompiler`/`AddResource`/`Compile` validation pattern).
// Missing docstrings-equivalent detail is a warning, not a blocking offense.
func Validate(spec UserDefinedSpec) ValidationResult {
	var result ValidationResult

	if spec.Name == "" {
		result.Offenses = append(result.Offenses, "name is required")
	}
	if spec.Description == "" {
		result.Warnings = append(result.Warnings, "description is empty")
	}
	if spec.ParameterSchema == nil {
		result.Offenses = append(result.Offenses, "parameter schema is required")
		return result
	}

	c := jsonschema.NewCompiler()
	resourceName := "tool:" + spec.Name
	if err := c.AddResource(resourceName, spec.ParameterSchema); err != nil {
		result.Offenses = append(result.Offenses, fmt.Sprintf("invalid parameter schema: %v", err))
		return result
	}
	if _, err := c.Compile(resourceName); err != nil {
		result.Offenses = append(result.Offenses, fmt.Sprintf("parameter schema does not compile: %v", err))
	}

	if _, ok := spec.ParameterSchema["properties"]; !ok {
		result.Warnings = append(result.Warnings, "parameter schema has no properties")
	}

	return result
}

// RegisterUserDefined validates spec and, if it passes, registers it on reg
// bound to adapter. A failing validation returns its offenses as an error
// and never touches the registry.
func RegisterUserDefined(reg *Registry, spec UserDefinedSpec, adapter Adapter) (ValidationResult, error) {
	result := Validate(spec)
	if !result.Valid() {
		return result, qerrors.New(qerrors.InputInvalid, fmt.Sprintf("tool %q failed validation: %v", spec.Name, result.Offenses))
	}

	if err := reg.Register(Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  spec.ParameterSchema,
		Enabled:     true,
	}, adapter); err != nil {
		return result, err
	}
	return result, nil
}

// schemaValidatingAdapter wraps an Adapter so its arguments are validated
// against the tool's compiled JSON Schema before invocation, a safety net
// for user-defined tools beyond the one-time registration check.
type schemaValidatingAdapter struct {
	schema *jsonschema.Schema
	inner  Adapter
}

// NewSchemaValidatingAdapter compiles schemaDoc once and wraps inner so
// every Invoke call is validated against it first.
func NewSchemaValidatingAdapter(schemaDoc map[string]any, inner Adapter) (Adapter, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("args.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := c.Compile("args.json")
	if err != nil {
		return nil, fmt.Errorf("schema does not compile: %w", err)
	}
	return &schemaValidatingAdapter{schema: schema, inner: inner}, nil
}

func (a *schemaValidatingAdapter) Invoke(ctx context.Context, arguments map[string]any) (string, error) {
	if err := a.schema.Validate(arguments); err != nil {
		return "", fmt.Errorf("arguments failed schema validation: %w", err)
	}
	return a.inner.Invoke(ctx, arguments)
}
