package authsvc

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectStore is the slice of the S3 API the service drives; *s3.Client satisfies it
type ObjectStore interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// PartPresigner issues part upload URLs; *s3.PresignClient satisfies it
type PartPresigner interface {
	PresignUploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Backend loads the shared AWS config for profile and builds the S3 and presign
// clients for bucket. An empty region is looked up from the bucket itself.
func NewS3Backend(ctx context.Context, profile, region, bucket string) (*s3.Client, *s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeAdaptive),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	if region == "" {
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		found, err := manager.GetBucketRegion(ctx, s3.NewFromConfig(cfg), bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("error resolving region of bucket %s: %v", bucket, err)
		}
		log.Info().Str("op", "authsvc/s3").Msgf("bucket %s is in %s", bucket, found)
		cfg.Region = found
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	})
	return client, s3.NewPresignClient(client), nil
}
