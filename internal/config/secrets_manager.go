package config

import (
	"context"
	"fmt"

	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerClient defines a minimal interface for AWS Secrets Manager
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsLoader loads secrets from AWS Secrets Manager
type AWSSecretsLoader struct {
	client SecretsManagerClient
}

// NewAWSSecretsLoader creates a loader from an already resolved AWS config.
func NewAWSSecretsLoader(awsCfg aws.Config) *AWSSecretsLoader {
	return &AWSSecretsLoader{client: secretsmanager.NewFromConfig(awsCfg)}
}

// NewAWSSecretsLoaderWithClient wraps an existing client.
func NewAWSSecretsLoaderWithClient(client SecretsManagerClient) *AWSSecretsLoader {
	return &AWSSecretsLoader{client: client}
}

// GetSecret retrieves a secret value from AWS Secrets Manager
func (l *AWSSecretsLoader) GetSecret(ctx context.Context, secretName string) (string, error) {
	logger.Infof("[SecretsLoader] Retrieving secret: %s", secretName)

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	}

	result, err := l.client.GetSecretValue(ctx, input)
	if err != nil {
		logger.Errorf("[SecretsLoader] Failed to get secret %s: %v", secretName, err)
		return "", fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	if result.SecretString == nil {
		logger.Errorf("[SecretsLoader] Secret value is nil: %s", secretName)
		return "", fmt.Errorf("secret %s has no string value", secretName)
	}

	return *result.SecretString, nil
}
