package invoke

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/openfroyo/vpclambda/pkg/engine"
)

// AWSOptions selects region and credentials for the AWS clients. Empty fields
// fall back to the SDK's default chain.
type AWSOptions struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadAWSConfig resolves an aws.Config from opts and the environment.
func LoadAWSConfig(ctx context.Context, opts AWSOptions) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// Lambda error codes that mean the request itself was wrong.
var invalidRequestCodes = map[string]bool{
	"InvalidRequestContentException": true,
	"InvalidParameterValueException": true,
	"RequestTooLargeException":       true,
	"UnsupportedMediaTypeException":  true,
}

// classifyAWSError maps an SDK error onto the engine's error kinds. Every
// failure to get an invocation accepted is a rejected dispatch unless the
// request was malformed or the function does not exist.
func classifyAWSError(err error, function string) *engine.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return engine.NewUnhandledError("invocation cancelled", err).
			WithCode(engine.ErrCodeCancelled).
			WithUnit(function)
	}

	var notFound *lambdatypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return engine.NewUnhandledError(fmt.Sprintf("function %q not found", function), err).
			WithCode(engine.ErrCodeFunctionNotFound).
			WithUnit(function)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "ResourceNotFoundException" {
			return engine.NewUnhandledError(fmt.Sprintf("function %q not found", function), err).
				WithCode(engine.ErrCodeFunctionNotFound).
				WithUnit(function)
		}
		if invalidRequestCodes[code] {
			return engine.NewValidationError("invocation request rejected", err).
				WithUnit(function).
				WithDetail("aws_code", code)
		}
		return engine.NewUnhandledError("invocation rejected", err).
			WithCode(engine.ErrCodeDispatchRejected).
			WithUnit(function).
			WithDetail("aws_code", code).
			WithDetail("fault", apiErr.ErrorFault().String())
	}

	var opErr *smithy.OperationError
	if errors.As(err, &opErr) {
		return engine.NewUnhandledError("invocation failed", err).
			WithCode(engine.ErrCodeDispatchRejected).
			WithUnit(function).
			WithDetail("operation", opErr.Operation())
	}

	return engine.NewUnhandledError("invocation failed", err).
		WithCode(engine.ErrCodeDispatchRejected).
		WithUnit(function)
}
