package formtree

import (
	"context"
	"fmt"
	"net/http"
)

// Result is the output of a [Validator].
type Result struct {
	Errors ErrorTree
	Values Value
}

// Validator checks a decoded value tree. Rules and schema live outside this
// package.
type Validator interface {
	Validate(ctx context.Context, v Value) (Result, error)
}

// ValidatorFunc adapts a function to the [Validator] interface.
type ValidatorFunc func(ctx context.Context, v Value) (Result, error)

// Validate calls f(ctx, v).
func (f ValidatorFunc) Validate(ctx context.Context, v Value) (Result, error) {
	return f(ctx, v)
}

// Validated is the outcome of validating submitted values. Exactly one of
// Errors and Data is set: validation failures are data, not Go errors.
type Validated struct {
	Errors ErrorTree
	Data   Value
	// Received holds the decoded values before validation, for re-populating
	// a form.
	Received Value
}

// Valid reports whether validation produced no errors.
func (v Validated) Valid() bool { return len(v.Errors) == 0 }

// Bind stores the validated data in dst with [Value.Decode].
func (v Validated) Bind(dst any) error {
	if !v.Valid() {
		return fmt.Errorf("form: bind: %d invalid fields", len(v.Errors))
	}
	return v.Data.Decode(dst)
}

// ValidateValue runs val over v. The returned error reports a failure of the
// validator itself.
func ValidateValue(ctx context.Context, v Value, val Validator) (Validated, error) {
	res, err := val.Validate(ctx, v)
	if err != nil {
		return Validated{}, fmt.Errorf("form: validate: %w", err)
	}
	if len(res.Errors) > 0 {
		return Validated{Errors: res.Errors, Received: v}, nil
	}
	return Validated{Data: res.Values, Received: v}, nil
}

// ValidateRequest decodes r with [ParseRequest] and validates the result.
func ValidateRequest(r *http.Request, val Validator, opts DecodeOptions) (Validated, error) {
	v, err := ParseRequest(r, opts)
	if err != nil {
		return Validated{}, err
	}
	return ValidateValue(r.Context(), v, val)
}
