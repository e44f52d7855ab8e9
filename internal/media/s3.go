package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store writes uploads to an S3-compatible bucket. Works against AWS
// proper and against R2/minio through the base endpoint option.
type S3Store struct { // implements Store
	client *s3.Client

	bucket        string
	publicBaseURL string
}

func NewS3Store(accessKeyID, accessKeySecret, region, baseEndpoint, bucket, publicBaseURL string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
		}
	})

	return &S3Store{
		client: client,

		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, contentType string, data []byte) (string, error) {
	name, err := objectName(contentType)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading media object: %w", err)
	}

	mediaLogger.Debug().Str("key", name).Int("bytes", len(data)).Msg("Media stored in S3")

	return joinURL(s.publicBaseURL, name), nil
}
