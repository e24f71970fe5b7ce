package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/taxo/internal/util"
	"github.com/OFFIS-RIT/taxo/pkg/cascade"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AuditArchive persists arbiter decision records as JSON objects under
// decisions/<date>/ in the configured bucket. It satisfies
// cascade.AuditSink.
const putTries = 3

type AuditArchive struct {
	client *s3.Client
	bucket string
}

// NewAuditArchive wraps an S3 client for decision archiving. A nil client
// yields a nil archive, which the cascade treats as archiving disabled.
func NewAuditArchive(client *s3.Client) *AuditArchive {
	if client == nil {
		return nil
	}
	return &AuditArchive{
		client: client,
		bucket: util.GetEnv("AWS_BUCKET"),
	}
}

func (a *AuditArchive) ArchiveDecision(ctx context.Context, rec *cascade.DecisionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding decision record: %w", err)
	}

	key := fmt.Sprintf("decisions/%s/%s-%s.json",
		rec.Time.UTC().Format("2006-01-02"),
		rec.Time.UTC().Format("150405"),
		gonanoid.Must(8),
	)
	err = util.RetryErrWithContext(ctx, putTries, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload decision record to S3: %v", err)
	}
	return nil
}
