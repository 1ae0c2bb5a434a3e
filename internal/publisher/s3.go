package publisher

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	config "github.com/thirdweb-dev/archive-exporter/configs"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher mirrors each output file to {prefix}/{dataset}/{file}.
type S3Publisher struct {
	client s3PutAPI
	bucket string
	prefix string
}

func NewS3Publisher(ctx context.Context, cfg *config.S3Config) (*S3Publisher, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			}, nil
		})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Publisher(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Publisher(client s3PutAPI, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix}
}

func (p *S3Publisher) Name() string { return "s3" }

func (p *S3Publisher) Key(file *FileWritten) string {
	return path.Join(p.prefix, file.Dataset.String(), file.File)
}

func (p *S3Publisher) Publish(ctx context.Context, file *FileWritten) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.Key(file)),
		Body:          f,
		ContentLength: aws.Int64(file.Bytes),
		ContentType:   aws.String("application/vnd.apache.parquet"),
		Metadata: map[string]string{
			"dataset":     file.Dataset.String(),
			"counter":     strconv.Itoa(file.Counter),
			"rows":        strconv.Itoa(file.Rows),
			"first_block": strconv.FormatUint(file.FirstBlock, 10),
			"last_block":  strconv.FormatUint(file.LastBlock, 10),
			"checksum":    file.SHA256,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (p *S3Publisher) Close() error { return nil }
