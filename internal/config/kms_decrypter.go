package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/ComUnity/signup-risk-gate/internal/util/logger"
)

// KMSClient is the subset of the KMS client used to decrypt config values.
type KMSClient interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSDecrypter decrypts small secrets (peppers, signing keys) stored in the
// config file as base64 KMS ciphertext.
type KMSDecrypter struct {
	client            KMSClient
	encryptionContext map[string]string
	timeout           time.Duration
}

func NewKMSDecrypter(awsCfg aws.Config, encryptionContext map[string]string) *KMSDecrypter {
	return NewKMSDecrypterWithClient(kms.NewFromConfig(awsCfg), encryptionContext)
}

func NewKMSDecrypterWithClient(client KMSClient, encryptionContext map[string]string) *KMSDecrypter {
	return &KMSDecrypter{
		client:            client,
		encryptionContext: encryptionContext,
		timeout:           10 * time.Second,
	}
}

func (d *KMSDecrypter) DecryptString(ctx context.Context, ciphertextB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("kms decrypt: base64: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	in := &kms.DecryptInput{CiphertextBlob: raw}
	if len(d.encryptionContext) > 0 {
		in.EncryptionContext = d.encryptionContext
	}
	out, err := d.client.Decrypt(cctx, in)
	if err != nil {
		logger.Errorf("[KMSDecrypter] Decrypt failed: %v", err)
		return "", fmt.Errorf("kms decrypt: %w", err)
	}
	if len(out.Plaintext) == 0 {
		return "", errors.New("kms decrypt: empty plaintext")
	}
	return string(out.Plaintext), nil
}
