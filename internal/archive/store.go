package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives complaint transcripts to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// TicketKey is the object key a ticket record is written to.
func TicketKey(record *TicketRecord, at time.Time) string {
	return fmt.Sprintf("complaints/v1/%s/%d/%02d/%02d/%s.json",
		record.TenantID, at.Year(), at.Month(), at.Day(), record.TicketID)
}

// ArchiveTicket writes a scrubbed TicketRecord as JSON to S3 and appends to the
// tenant's manifest. Re-archiving the same ticket overwrites the previous snapshot.
func (s *Store) ArchiveTicket(ctx context.Context, record *TicketRecord) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	now := record.ArchivedAt
	if now.IsZero() {
		now = time.Now().UTC()
		record.ArchivedAt = now
	}
	if record.Version == "" {
		record.Version = "1.0"
	}
	record.Messages = ScrubMessages(record.Messages)
	record.MessageCount = len(record.Messages)

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	key := TicketKey(record, now)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived complaint transcript",
		"tenant_id", record.TenantID,
		"ticket_id", record.TicketID,
		"s3_key", key,
		"message_count", record.MessageCount,
	)

	entry := ManifestEntry{
		TicketID:       record.TicketID,
		ConversationID: record.ConversationID,
		S3Key:          key,
		Category:       record.Category,
		Severity:       record.Severity,
		ArchivedAt:     now.Format(time.RFC3339),
		MessageCount:   record.MessageCount,
	}
	if err := s.AppendManifest(ctx, record.TenantID, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "ticket_id", record.TicketID)
	}

	return key, nil
}

// AppendManifest appends a JSONL line to the tenant's monthly manifest.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, tenantID string, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := time.Now().UTC()
	manifestKey := fmt.Sprintf("complaints/v1/%s/manifests/%d-%02d.jsonl", tenantID, now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
