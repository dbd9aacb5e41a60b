package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/commy-mesh/commy/pkg/metrics"
)

// multipartThreshold mirrors the part-size floor S3 itself enforces:
// segments below this size go through a single PutObject, larger ones
// through the S3 multipart upload API.
const multipartThreshold = 5 * 1024 * 1024

// Archiver uploads rotated journal segments to S3-compatible cold storage.
// It is a write-only companion to AuditJournal: once a segment has been
// mirrored (or simply aged out), its bytes are archived here and the local
// journal can reclaim the space.
type Archiver struct {
	client  *s3.Client
	bucket  string
	prefix  string
	metrics metrics.StoreMetrics
}

// NewArchiver builds an Archiver from a region/bucket pair, resolving
// credentials through the default AWS credential chain.
func NewArchiver(ctx context.Context, region, bucket, prefix string, m metrics.StoreMetrics) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("store: access archive bucket %q: %w", bucket, err)
	}

	return &Archiver{client: client, bucket: bucket, prefix: prefix, metrics: m}, nil
}

// segmentKey names an archived segment by its sequence range, so a restore
// can locate the segment covering a given journal sequence without a
// separate index.
func (a *Archiver) segmentKey(firstSeq, lastSeq uint64) string {
	name := fmt.Sprintf("segment-%020d-%020d.json", firstSeq, lastSeq)
	if a.prefix == "" {
		return name
	}
	return a.prefix + name
}

// UploadSegment archives a contiguous run of journal entries (firstSeq
// through lastSeq inclusive, already JSON-encoded by the caller) as a
// single object. Segments at or above multipartThreshold use the
// multipart API so no single request exceeds a safe size.
func (a *Archiver) UploadSegment(ctx context.Context, firstSeq, lastSeq uint64, payload []byte) (err error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.ObserveArchiveUpload(int64(len(payload)), time.Since(start), err)
		}
	}()

	key := a.segmentKey(firstSeq, lastSeq)
	if len(payload) < multipartThreshold {
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(payload),
		})
		return err
	}
	return a.uploadMultipart(ctx, key, payload)
}

func (a *Archiver) uploadMultipart(ctx context.Context, key string, payload []byte) error {
	created, err := a.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("store: create multipart upload: %w", err)
	}

	var completed []types.CompletedPart
	partNumber := int32(1)
	for offset := 0; offset < len(payload); offset += multipartThreshold {
		end := offset + multipartThreshold
		if end > len(payload) {
			end = len(payload)
		}
		out, err := a.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(a.bucket),
			Key:        aws.String(key),
			UploadId:   created.UploadId,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(payload[offset:end]),
		})
		if err != nil {
			a.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(a.bucket),
				Key:      aws.String(key),
				UploadId: created.UploadId,
			})
			return fmt.Errorf("store: upload part %d: %w", partNumber, err)
		}
		completed = append(completed, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})
		partNumber++
	}

	_, err = a.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		UploadId:        created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("store: complete multipart upload: %w", err)
	}
	return nil
}
