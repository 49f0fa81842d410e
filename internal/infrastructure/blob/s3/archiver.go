// Package s3blob archives scan reports to S3 or an S3-compatible store (MinIO, R2).
package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"arbscan/internal/application/port"
	"arbscan/internal/domain/model"
)

const Name = "s3"

// Config 为空的 AccessKey 表示使用默认凭证链（环境变量、~/.aws、IAM role）
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// objectPutter s3.Client 的子集，测试里替换
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver 每次扫描写一个 JSON 对象：<prefix>/YYYY/MM/DD/<report id>.json
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return newArchiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func newArchiver(client objectPutter, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (a *Archiver) Name() string { return Name }

// Key 报告的对象路径
func (a *Archiver) Key(report model.Report) string {
	day := report.StartedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, report.ID+".json")
}

func (a *Archiver) WriteReport(ctx context.Context, report model.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("s3blob: marshal report %s: %w", report.ID, err)
	}
	key := a.Key(report)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// normaliseEndpoint 没有 scheme 时补 https://
func normaliseEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

var _ port.ReportSink = (*Archiver)(nil)
