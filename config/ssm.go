package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadFromSSM overlays the YAML document stored in the parameter name onto base.
// Environment variables still win.
func LoadFromSSM(ctx context.Context, name string, base Config) (Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return base, fmt.Errorf("load aws config: %w", err)
	}
	return FromParameterStore(ctx, ssm.NewFromConfig(cfg), name, base)
}

func FromParameterStore(ctx context.Context, client ParameterGetter, name string, base Config) (Config, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return base, fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return base, fmt.Errorf("parameter %s has no value", name)
	}

	cfg := base
	if err := Parse([]byte(*out.Parameter.Value), &cfg); err != nil {
		return base, fmt.Errorf("unmarshal parameter %s: %w", name, err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return base, err
	}
	return cfg, cfg.Validate()
}
