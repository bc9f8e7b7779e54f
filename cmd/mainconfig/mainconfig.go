package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/agenda-agent/internal/archive"
	appconfig "github.com/wolfman30/agenda-agent/internal/config"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so the API and the sweeper
// share the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case s3.ServiceID, sesv2.ServiceID:
					return aws.Endpoint{
						URL:               endpoint,
						PartitionID:       "aws",
						SigningRegion:     cfg.AWSRegion,
						HostnameImmutable: true,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// NewS3Client builds the archive client. LocalStack needs path-style addressing.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.UsePathStyle = true
		}
	})
}

// AWSClients are the optional AWS-backed integrations. Either field may be nil.
type AWSClients struct {
	Archive *archive.Store
	SES     *sesv2.Client
}

// LoadAWSClients builds the archive store and SES client when configured. No
// AWS config is loaded when neither is needed.
func LoadAWSClients(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (AWSClients, error) {
	wantArchive := strings.TrimSpace(cfg.ArchiveBucket) != ""
	wantSES := strings.TrimSpace(cfg.SESFromEmail) != ""
	if !wantArchive && !wantSES {
		return AWSClients{}, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return AWSClients{}, err
	}
	var clients AWSClients
	if wantArchive {
		clients.Archive = archive.NewStore(NewS3Client(awsCfg, cfg), cfg.ArchiveBucket, logger)
		logger.Info("complaint archive enabled", "bucket", cfg.ArchiveBucket)
	}
	if wantSES {
		clients.SES = sesv2.NewFromConfig(awsCfg)
	}
	return clients, nil
}
