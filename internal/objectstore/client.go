package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"wisefido-sleepstage/internal/store"
	"wisefido-sleepstage/owl-common/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client S3 兼容对象存储客户端，同时实现 store.ObjectSource 与 store.ArtifactSink
type Client struct {
	mc     *minio.Client
	logger *zap.Logger
}

// NewClient 创建对象存储客户端；未显式配置凭证时读取 AWS 标准环境变量
func NewClient(cfg *config.ObjectStoreConfig, logger *zap.Logger) (*Client, error) {
	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Client{mc: mc, logger: logger}, nil
}

// Get 下载对象全部内容，对象不存在返回 store.ErrNotFound
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}

	c.logger.Debug("Downloaded object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("size", len(body)),
	)
	return body, nil
}

// Put 上传对象
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, key, err)
	}
	return nil
}
