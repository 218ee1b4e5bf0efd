package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/queue"
)

// Uploader is the subset of *s3.Client used for archival.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ContractStore is the persistence needed to archive a contract.
type ContractStore interface {
	GetContract(ctx context.Context, id pgtype.UUID) (dbgen.Contract, error)
	MarkContractArchived(ctx context.Context, arg dbgen.MarkContractArchivedParams) error
}

// EventEmitter records the archived event.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (dbgen.DomainEvent, error)
}

// S3Config holds the bucket connection settings.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. Static credentials are used when both keys are
// set, otherwise the default AWS credential chain applies. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Archiver writes the submitted contract payload to S3. It is registered as the
// asynq handler for queue.TypeContractArchive.
type Archiver struct {
	S3     Uploader
	Bucket string
	Prefix string
	Store  ContractStore
	Events EventEmitter
}

// ObjectKey returns the object key for a contract: <prefix>/<kind>/YYYY/MM/DD/<id>.json.
func ObjectKey(prefix, kind, contractID string, submitted time.Time) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "contracts"
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", prefix, kind, submitted.UTC().Format("2006/01/02"), contractID)
}

// ProcessTask implements asynq.Handler.
func (a *Archiver) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseContractTask(t)
	if err != nil {
		return err
	}
	_, err = a.Archive(ctx, task.ContractID)
	return err
}

// Archive uploads one contract and records the object key. Already archived
// contracts return their existing key.
func (a *Archiver) Archive(ctx context.Context, contractID string) (string, error) {
	if a.S3 == nil || a.Store == nil || a.Bucket == "" {
		return "", fmt.Errorf("archive: not configured: %w", asynq.SkipRetry)
	}
	id, err := common.ParseUUID("contractId", contractID)
	if err != nil {
		return "", fmt.Errorf("archive: %v: %w", err, asynq.SkipRetry)
	}
	contract, err := a.Store.GetContract(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("archive: contract %s not found: %w", contractID, asynq.SkipRetry)
	}
	if err != nil {
		return "", fmt.Errorf("archive: load contract: %w", err)
	}
	if existing := common.TextValue(contract.ArchiveKey); existing != "" {
		return existing, nil
	}

	key := ObjectKey(a.Prefix, contract.Kind, contractID, common.Time(contract.CreatedAt))
	_, err = a.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(contract.Payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(contract.Payload))),
		Metadata: map[string]string{
			"contract-id":   contractID,
			"contract-kind": contract.Kind,
		},
	})
	if err != nil {
		obs.ObserveArchive("error")
		return "", fmt.Errorf("archive: put s3://%s/%s: %w", a.Bucket, key, err)
	}
	obs.ObserveArchive("ok")

	if err := a.Store.MarkContractArchived(ctx, dbgen.MarkContractArchivedParams{ID: id, ArchiveKey: common.Text(key)}); err != nil {
		return "", fmt.Errorf("archive: record key: %w", err)
	}
	if a.Events != nil {
		if _, err := a.Events.Emit(ctx, events.TopicContractArchived, id, map[string]string{"bucket": a.Bucket, "key": key}); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("contract_id", contractID).Msg("emit archived event")
		}
	}
	return key, nil
}
