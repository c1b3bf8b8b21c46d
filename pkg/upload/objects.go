package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/careops/claimrunner/pkg/config"
	"github.com/sirupsen/logrus"
)

// S3Objects gives the run indexer direct object access to the artifact
// bucket: enumerating uploaded runs and reading and writing individual
// objects such as result.json and the index itself.
type S3Objects struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
}

// NewS3Objects creates an object client from the upload configuration.
func NewS3Objects(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) *S3Objects {
	return &S3Objects{
		log:    log.WithField("component", "s3-objects"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

// ListRunIDs returns the IDs of every run uploaded under runsPrefix,
// which must end with "/". One uploaded run directory yields one ID.
func (o *S3Objects) ListRunIDs(
	ctx context.Context, runsPrefix string,
) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(o.cfg.Bucket),
		Prefix:    aws.String(runsPrefix),
		Delimiter: aws.String("/"),
	})

	var ids []string

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing runs under %q: %w", runsPrefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}

			id := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, runsPrefix), "/")
			if id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}

// GetObject returns the contents of the given key, or (nil, nil) when
// the key does not exist.
func (o *S3Objects) GetObject(
	ctx context.Context, key string,
) ([]byte, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NoSuchKey") {
			// Some S3-compatible stores report a generic error string
			// instead of the typed NoSuchKey.
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// PutObject writes data to the given key with the specified content type.
func (o *S3Objects) PutObject(
	ctx context.Context, key string, data []byte, contentType string,
) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}

	return nil
}
