// Command stack synthesizes the vpclambda deployment for the CDK toolkit.
package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/openfroyo/vpclambda/pkg/config"
	"github.com/openfroyo/vpclambda/pkg/stack"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}

	assetDir := os.Getenv("VPCLAMBDA_ASSET_DIR")
	if assetDir == "" {
		assetDir = "dist"
	}

	stack.NewVpcLambdaStack(app, "VpcLambdaStack", &stack.VpcLambdaStackProps{
		StackProps: awscdk.StackProps{Env: env()},
		AssetDir:   assetDir,
		Config:     cfg,
	})

	app.Synth(nil)
}

// env resolves the target account and region from the toolkit's defaults.
func env() *awscdk.Environment {
	account, region := os.Getenv("CDK_DEFAULT_ACCOUNT"), os.Getenv("CDK_DEFAULT_REGION")
	if account == "" && region == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}
