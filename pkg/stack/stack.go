// Package stack declares the cloud resources of vpclambda: a two-AZ VPC with
// NAT egress, the two functions and the state machine that connects them.
package stack

import (
	"path/filepath"
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsstepfunctionstasks"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/engine"
)

// Network layout.
const (
	VpcCidr        = "10.10.0.0/24"
	SubnetCidrMask = 28
	MaxAzs         = 2
	NatGateways    = 2
)

// Asset directories below AssetDir, each holding a "bootstrap" binary.
const (
	CreateArrayAsset   = "create-array"
	GetMyGlobalIPAsset = "get-my-global-ip"
)

// VpcLambdaStackProps configures the stack.
type VpcLambdaStackProps struct {
	awscdk.StackProps

	// AssetDir holds the compiled function bundles. Defaults to "dist".
	AssetDir string

	// Config supplies function names, lookup settings and fan-out
	// concurrency. Defaults to config.Default().
	Config *config.Config

	// ExplicitFunctionNames pins the deployed function names to
	// Config.Functions so the CLI can invoke them without stack outputs.
	ExplicitFunctionNames bool
}

// VpcLambdaStack exposes the constructs other stacks or tests may need.
type VpcLambdaStack struct {
	awscdk.Stack

	Vpc                 awsec2.Vpc
	CreateArrayFunction awslambda.Function
	GetMyGlobalIPFunc   awslambda.Function
	StateMachine        awsstepfunctions.StateMachine
}

// NewVpcLambdaStack declares every resource of the deployment.
func NewVpcLambdaStack(scope constructs.Construct, id string, props *VpcLambdaStackProps) *VpcLambdaStack {
	if props == nil {
		props = &VpcLambdaStackProps{}
	}
	cfg := props.Config
	if cfg == nil {
		cfg = config.Default()
	}
	assetDir := props.AssetDir
	if assetDir == "" {
		assetDir = "dist"
	}

	sprops := props.StackProps
	stack := awscdk.NewStack(scope, &id, &sprops)

	vpc := awsec2.NewVpc(stack, jsii.String("Vpc"), &awsec2.VpcProps{
		IpAddresses:        awsec2.IpAddresses_Cidr(jsii.String(VpcCidr)),
		EnableDnsHostnames: jsii.Bool(true),
		EnableDnsSupport:   jsii.Bool(true),
		MaxAzs:             jsii.Number(MaxAzs),
		NatGateways:        jsii.Number(NatGateways),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				Name:       jsii.String("Public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
				CidrMask:   jsii.Number(SubnetCidrMask),
			},
			{
				Name:       jsii.String("Private"),
				SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
				CidrMask:   jsii.Number(SubnetCidrMask),
			},
		},
	})

	// The reporter runs inside the private subnets so its egress goes
	// through the NAT gateways.
	reportRole := awsiam.NewRole(stack, jsii.String("GetMyGlobalIPRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("lambda.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSLambdaVPCAccessExecutionRole")),
		},
	})

	env := map[string]*string{
		config.EnvLookupEndpoint:       jsii.String(cfg.Lookup.Endpoint),
		config.EnvLookupTimeoutSeconds: jsii.String(strconv.Itoa(cfg.Lookup.TimeoutSeconds)),
		config.EnvMaxArrayLength:       jsii.String(strconv.Itoa(cfg.MaxArrayLength)),
	}

	reportProps := &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(assetDir, GetMyGlobalIPAsset)), nil),
		Vpc:          vpc,
		VpcSubnets:   &awsec2.SubnetSelection{SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS},
		Role:         reportRole,
		Timeout:      awscdk.Duration_Seconds(jsii.Number(float64(cfg.Lookup.TimeoutSeconds + 5))),
		LogRetention: awslogs.RetentionDays_TWO_WEEKS,
		Tracing:      awslambda.Tracing_ACTIVE,
		Environment:  &env,
	}
	arrayProps := &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(assetDir, CreateArrayAsset)), nil),
		LogRetention: awslogs.RetentionDays_TWO_WEEKS,
		Tracing:      awslambda.Tracing_ACTIVE,
		Environment:  &env,
	}
	if props.ExplicitFunctionNames {
		reportProps.FunctionName = jsii.String(cfg.Functions.GetMyGlobalIP)
		arrayProps.FunctionName = jsii.String(cfg.Functions.CreateArray)
	}

	reportFn := awslambda.NewFunction(stack, jsii.String("GetMyGlobalIPFunction"), reportProps)
	arrayFn := awslambda.NewFunction(stack, jsii.String("CreateArrayFunction"), arrayProps)

	def := cfg.Definition()
	sm := awsstepfunctions.NewStateMachine(stack, jsii.String("StateMachine"), &awsstepfunctions.StateMachineProps{
		DefinitionBody: awsstepfunctions.DefinitionBody_FromChainable(workflow(stack, def, arrayFn, reportFn)),
		TracingEnabled: jsii.Bool(true),
	})

	awscdk.NewCfnOutput(stack, jsii.String("CreateArrayFunctionName"), &awscdk.CfnOutputProps{
		Value: arrayFn.FunctionName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("GetMyGlobalIPFunctionName"), &awscdk.CfnOutputProps{
		Value: reportFn.FunctionName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("StateMachineArn"), &awscdk.CfnOutputProps{
		Value: sm.StateMachineArn(),
	})

	return &VpcLambdaStack{
		Stack:               stack,
		Vpc:                 vpc,
		CreateArrayFunction: arrayFn,
		GetMyGlobalIPFunc:   reportFn,
		StateMachine:        sm,
	}
}

// workflow builds BuildArray -> FanOutReport -> Succeed with the same paths
// the local sequencer uses.
func workflow(scope constructs.Construct, def *engine.Definition, arrayFn, reportFn awslambda.IFunction) awsstepfunctions.IChainable {
	buildArray := awsstepfunctionstasks.NewLambdaInvoke(scope, jsii.String(string(engine.StateBuildArray)), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction: arrayFn,
		Payload: awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{
			"number": awsstepfunctions.JsonPath_StringAt(jsii.String(def.NumberPath)),
		}),
	})

	reportInvocation := awsstepfunctionstasks.LambdaInvocationType_EVENT
	if def.ReportInvocation == engine.InvocationRequestResponse {
		reportInvocation = awsstepfunctionstasks.LambdaInvocationType_REQUEST_RESPONSE
	}
	report := awsstepfunctionstasks.NewLambdaInvoke(scope, jsii.String("ReportIP"), &awsstepfunctionstasks.LambdaInvokeProps{
		LambdaFunction: reportFn,
		InvocationType: reportInvocation,
		Payload: awsstepfunctions.TaskInput_FromObject(&map[string]interface{}{
			"id": awsstepfunctions.JsonPath_StringAt(jsii.String(def.ItemPath)),
		}),
		OutputPath: jsii.String(def.BranchOutputPath),
	})

	fanOut := awsstepfunctions.NewMap(scope, jsii.String(string(engine.StateFanOutReport)), &awsstepfunctions.MapProps{
		ItemsPath:      jsii.String(def.ItemsPath),
		MaxConcurrency: jsii.Number(float64(def.MaxConcurrency)),
	})
	fanOut.ItemProcessor(report, nil)

	succeed := awsstepfunctions.NewSucceed(scope, jsii.String(string(engine.StateSucceed)), nil)

	return awsstepfunctions.Chain_Start(buildArray).Next(fanOut).Next(succeed)
}
