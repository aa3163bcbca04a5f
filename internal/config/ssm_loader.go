package config

import (
	"context"
	"fmt"

	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMParameterStoreClient defines an interface for AWS SSM client
type SSMParameterStoreClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMLoader loads parameters from AWS Systems Manager Parameter Store
type SSMLoader struct {
	client SSMParameterStoreClient
}

// NewSSMLoader creates a loader from an already resolved AWS config.
func NewSSMLoader(awsCfg aws.Config) *SSMLoader {
	return &SSMLoader{client: ssm.NewFromConfig(awsCfg)}
}

// NewSSMLoaderWithClient wraps an existing client.
func NewSSMLoaderWithClient(client SSMParameterStoreClient) *SSMLoader {
	return &SSMLoader{client: client}
}

// GetParameter retrieves a parameter from SSM
func (l *SSMLoader) GetParameter(ctx context.Context, paramName string, decrypt bool) (string, error) {
	logger.Infof("[SSMLoader] Retrieving parameter: %s", paramName)

	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(decrypt),
	}

	result, err := l.client.GetParameter(ctx, input)
	if err != nil {
		logger.Errorf("[SSMLoader] Failed to get parameter %s: %v", paramName, err)
		return "", fmt.Errorf("failed to get parameter %s: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		logger.Errorf("[SSMLoader] Parameter value is nil: %s", paramName)
		return "", fmt.Errorf("parameter %s has no value", paramName)
	}

	return *result.Parameter.Value, nil
}
