package invoke

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// LambdaAPI is the subset of the Lambda client the invoker needs.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker dispatches invocations to deployed functions.
type LambdaInvoker struct {
	client LambdaAPI
}

// NewLambdaInvoker creates an invoker from an AWS config.
func NewLambdaInvoker(cfg aws.Config) *LambdaInvoker {
	return NewLambdaInvokerWithClient(lambda.NewFromConfig(cfg))
}

// NewLambdaInvokerWithClient creates an invoker around an existing client.
func NewLambdaInvokerWithClient(client LambdaAPI) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

// Invoke calls the function with the requested invocation type. For event
// invocations the service answers 202 once the event is queued.
func (l *LambdaInvoker) Invoke(ctx context.Context, req *engine.InvokeRequest) (*engine.InvokeResult, error) {
	if req == nil {
		return nil, engine.NewValidationError("invoke request is nil", nil)
	}
	if err := req.Type.Validate(); err != nil {
		return nil, engine.NewValidationError("invalid invocation type", err).WithUnit(req.Function)
	}

	ctx, span := telemetry.StartInvokeContext(ctx, req.Function, string(req.Type))
	defer span.End()
	timer := telemetry.NewTimer()
	metrics := telemetry.MetricsFromContext(ctx)

	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(req.Function),
		InvocationType: invocationType(req.Type),
		Payload:        req.Payload,
	})
	if err != nil {
		classified := classifyAWSError(err, req.Function)
		telemetry.RecordError(span, classified)
		metrics.RecordInvocation(req.Function, string(req.Type), "rejected", timer.Duration())
		return nil, classified
	}

	span.SetAttributes(telemetry.AttrStatusCode.Int(int(out.StatusCode)))

	if out.FunctionError != nil {
		fnErr := engine.NewUnhandledError("function returned an error", nil).
			WithCode(engine.ErrCodeFunctionError).
			WithUnit(req.Function).
			WithDetail("function_error", aws.ToString(out.FunctionError))
		if len(out.Payload) > 0 {
			fnErr = fnErr.WithDetail("payload", json.RawMessage(out.Payload))
		}
		telemetry.RecordError(span, fnErr)
		metrics.RecordInvocation(req.Function, string(req.Type), "failure", timer.Duration())
		return nil, fnErr
	}

	metrics.RecordInvocation(req.Function, string(req.Type), "success", timer.Duration())
	return &engine.InvokeResult{
		StatusCode: int(out.StatusCode),
		Accepted:   true,
		Payload:    out.Payload,
	}, nil
}

func invocationType(t engine.InvocationType) lambdatypes.InvocationType {
	if t == engine.InvocationEvent {
		return lambdatypes.InvocationTypeEvent
	}
	return lambdatypes.InvocationTypeRequestResponse
}
