package stack

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vpclambda/pkg/config"
)

// synth builds the stack against placeholder bundles. jsii needs node.
func synth(t *testing.T, explicitNames bool) assertions.Template {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node is required to synthesize the stack")
	}

	dir := t.TempDir()
	for _, asset := range []string{CreateArrayAsset, GetMyGlobalIPAsset} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, asset), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, asset, "bootstrap"), []byte("#!/bin/sh\n"), 0o755))
	}

	app := awscdk.NewApp(nil)
	s := NewVpcLambdaStack(app, "TestStack", &VpcLambdaStackProps{
		AssetDir:              dir,
		Config:                config.Default(),
		ExplicitFunctionNames: explicitNames,
	})
	return assertions.Template_FromStack(s.Stack, nil)
}

func TestStack_Network(t *testing.T) {
	template := synth(t, false)

	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"CidrBlock":          VpcCidr,
		"EnableDnsHostnames": true,
		"EnableDnsSupport":   true,
	})
	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(NatGateways))
	template.ResourceCountIs(jsii.String("AWS::EC2::Subnet"), jsii.Number(4))
	template.ResourceCountIs(jsii.String("AWS::Lambda::Function"), jsii.Number(3))
}

func TestStack_ReporterRunsInVpc(t *testing.T) {
	template := synth(t, false)

	template.HasResourceProperties(jsii.String("AWS::IAM::Role"), map[string]interface{}{
		"ManagedPolicyArns": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Fn::Join": assertions.Match_ArrayWith(&[]interface{}{
					assertions.Match_ArrayWith(&[]interface{}{
						":iam::aws:policy/service-role/AWSLambdaVPCAccessExecutionRole",
					}),
				}),
			}),
		}),
	})
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"Handler":       "bootstrap",
		"Runtime":       "provided.al2023",
		"TracingConfig": map[string]interface{}{"Mode": "Active"},
		"VpcConfig":     assertions.Match_ObjectLike(&map[string]interface{}{}),
	})
}

func TestStack_StateMachine(t *testing.T) {
	template := synth(t, false)

	template.HasResourceProperties(jsii.String("AWS::StepFunctions::StateMachine"), map[string]interface{}{
		"TracingConfiguration": map[string]interface{}{"Enabled": true},
	})
	template.HasOutput(jsii.String("StateMachineArn"), map[string]interface{}{})
}

func TestStack_ExplicitFunctionNames(t *testing.T) {
	template := synth(t, true)
	cfg := config.Default()

	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"FunctionName": cfg.Functions.CreateArray,
	})
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"FunctionName": cfg.Functions.GetMyGlobalIP,
	})
}

func TestStack_FunctionEnvironment(t *testing.T) {
	template := synth(t, false)
	cfg := config.Default()

	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"Environment": map[string]interface{}{
			"Variables": assertions.Match_ObjectLike(&map[string]interface{}{
				config.EnvLookupEndpoint:       cfg.Lookup.Endpoint,
				config.EnvLookupTimeoutSeconds: strconv.Itoa(cfg.Lookup.TimeoutSeconds),
				config.EnvMaxArrayLength:       "0",
			}),
		},
	})
}
