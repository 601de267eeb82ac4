package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

type BracketStackProps struct {
	awscdk.StackProps
	// PostgresDSN points the function at the tournament database.
	PostgresDSN string
	LogLevel    string
	CORSOrigins string
}

func NewBracketStack(scope constructs.Construct, id string, props *BracketStackProps) awscdk.Stack {
	if props == nil {
		props = &BracketStackProps{}
	}
	stack := awscdk.NewStack(scope, &id, &props.StackProps)

	env := map[string]*string{
		"APP":       jsii.String("prod"),
		"LOG_LEVEL": jsii.String(props.LogLevel),
	}
	if props.PostgresDSN != "" {
		env["POSTGRES_DSN"] = jsii.String(props.PostgresDSN)
	}
	if props.CORSOrigins != "" {
		env["CORS_ALLOWED_ORIGINS"] = jsii.String(props.CORSOrigins)
	}

	// Built with GOOS=linux GOARCH=arm64 go build -o dist/bootstrap .
	lambdaFn := awslambda.NewFunction(stack, jsii.String("BracketApi"), &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String("../dist"), nil),
		MemorySize:   jsii.Number(256),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(15)),
		Environment:  &env,
	})

	api := awsapigateway.NewLambdaRestApi(stack, jsii.String("BracketApiGateway"), &awsapigateway.LambdaRestApiProps{
		Handler: lambdaFn,
	})

	awscdk.NewCfnOutput(stack, jsii.String("ApiUrl"), &awscdk.CfnOutputProps{Value: api.Url()})

	return stack
}

func main() {
	app := awscdk.NewApp(nil)
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	NewBracketStack(app, "BracketStack", &BracketStackProps{
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogLevel:    level,
		CORSOrigins: os.Getenv("CORS_ALLOWED_ORIGINS"),
	})
	app.Synth(nil)
}
