package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// DefaultMaxArrayLength leaves ArrayBuilder without a ceiling.
const DefaultMaxArrayLength = 0

// Work unit names used in errors and logs.
const (
	UnitArrayBuilder = "ArrayBuilder"
	UnitIPReporter   = "IpReporter"
)

// ArrayBuilder builds the sequence [1..n].
type ArrayBuilder struct {
	maxLength int
	validate  *validator.Validate
}

// NewArrayBuilder creates an ArrayBuilder accepting numbers up to maxLength.
// A non-positive maxLength accepts any non-negative number.
func NewArrayBuilder(maxLength int) *ArrayBuilder {
	if maxLength < 0 {
		maxLength = 0
	}
	return &ArrayBuilder{
		maxLength: maxLength,
		validate:  validator.New(),
	}
}

// Build returns [1..req.Number]. A zero number yields an empty, non-nil array.
func (b *ArrayBuilder) Build(ctx context.Context, req *engine.NumberRequest) (*engine.NumberSequence, error) {
	op := telemetry.StartOperation(ctx, "array_builder.build")
	seq, err := b.build(op.Ctx, req)
	op.End(err)

	if err != nil {
		telemetry.MetricsFromContext(ctx).RecordError(string(engine.KindOf(err)))
		op.Logger.WithError(err).Warn("Array build rejected")
		return nil, err
	}

	telemetry.MetricsFromContext(ctx).RecordArrayBuilt()
	op.Logger.Debugf("Built array of %d elements in %s", len(seq.Array), op.Timer.Duration())
	return seq, nil
}

func (b *ArrayBuilder) build(ctx context.Context, req *engine.NumberRequest) (*engine.NumberSequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.NewUnhandledError("array build cancelled", err).
			WithCode(engine.ErrCodeCancelled).
			WithUnit(UnitArrayBuilder)
	}
	if req == nil {
		return nil, engine.NewValidationError("number is required", nil).WithUnit(UnitArrayBuilder)
	}
	if err := b.validate.Struct(req); err != nil {
		return nil, engine.NewValidationError("number must not be negative", err).
			WithCode(engine.ErrCodeOutOfRange).
			WithUnit(UnitArrayBuilder).
			WithDetail("number", req.Number)
	}
	if b.maxLength > 0 && req.Number > b.maxLength {
		return nil, engine.NewValidationError(fmt.Sprintf("number exceeds maximum of %d", b.maxLength), nil).
			WithCode(engine.ErrCodeOutOfRange).
			WithUnit(UnitArrayBuilder).
			WithDetail("number", req.Number).
			WithDetail("max", b.maxLength)
	}

	array := make([]int, req.Number)
	for i := range array {
		array[i] = i + 1
	}
	return &engine.NumberSequence{Array: array}, nil
}

// HandleJSON decodes {"number": n}, builds the sequence and encodes
// {"array": [...]}. The number must be a JSON integer.
func (b *ArrayBuilder) HandleJSON(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	number, err := integerField(payload, "number")
	if err != nil {
		return nil, err.WithUnit(UnitArrayBuilder)
	}

	seq, buildErr := b.Build(ctx, &engine.NumberRequest{Number: number})
	if buildErr != nil {
		return nil, buildErr
	}

	out, mErr := json.Marshal(seq)
	if mErr != nil {
		return nil, engine.NewUnhandledError("failed to encode array", mErr).WithUnit(UnitArrayBuilder)
	}
	return out, nil
}

// integerField extracts a required integer field from a JSON object. Strings,
// fractions and exponents are rejected.
func integerField(payload json.RawMessage, field string) (int, *engine.Error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return 0, engine.NewValidationError("payload must be a JSON object", err)
	}

	raw, ok := obj[field]
	if !ok {
		return 0, engine.NewValidationError(fmt.Sprintf("field %q is required", field), nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return 0, engine.NewValidationError(fmt.Sprintf("field %q must be an integer", field), err)
	}
	num, ok := value.(json.Number)
	if !ok {
		return 0, engine.NewValidationError(fmt.Sprintf("field %q must be an integer", field), nil).
			WithDetail(field, value)
	}
	n, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, engine.NewValidationError(fmt.Sprintf("field %q must be an integer", field), err).
			WithDetail(field, num.String())
	}
	return n, nil
}
