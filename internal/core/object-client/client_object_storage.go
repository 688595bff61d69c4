package objectclient

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/core"
)

type S3Client struct {
	client *s3.Client
	region string
}

func NewS3Client(ctx context.Context, cfg *cfg.Config) (core.ObjectClient, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.AwsRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	log.Println("Connected to AWS S3 successfully")

	return &S3Client{client: client, region: cfg.AwsRegion}, nil
}

// ListObjects enumerates every object under bucket/prefix, carrying the
// public URL and canonical s3:// path for each.
func (c *S3Client) ListObjects(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	ctxList, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var out []core.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctxList)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || key[len(key)-1] == '/' {
				continue
			}
			out = append(out, core.ObjectInfo{
				Name:          key,
				PublicURL:     fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, c.region, key),
				CanonicalPath: fmt.Sprintf("s3://%s/%s", bucket, key),
			})
		}
	}
	return out, nil
}

// Download writes one object to localPath.
func (c *S3Client) Download(ctx context.Context, bucket, key, localPath string) error {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	downloader := manager.NewDownloader(c.client)
	_, err = downloader.Download(ctxGet, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 download failed: %w", err)
	}
	return nil
}
