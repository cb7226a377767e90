// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"docuchat-go/internal/config"
	"docuchat-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	// 1. 初始化 MinIO 客户端
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// ObjectName 返回文档原始字节在存储桶中的对象名。
func ObjectName(documentID string) string {
	return fmt.Sprintf("documents/%s", documentID)
}

// PutDocument 将文档的原始字节写入对象存储。
func PutDocument(ctx context.Context, bucketName, documentID string, data []byte, contentType string) error {
	_, err := MinioClient.PutObject(ctx, bucketName, ObjectName(documentID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("写入对象存储失败: %w", err)
	}
	return nil
}

// GetDocument 从对象存储读取文档的原始字节。
func GetDocument(ctx context.Context, bucketName, documentID string) ([]byte, error) {
	object, err := MinioClient.GetObject(ctx, bucketName, ObjectName(documentID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从对象存储读取失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, object); err != nil {
		return nil, fmt.Errorf("读取对象流失败: %w", err)
	}
	return buf.Bytes(), nil
}

// RemoveDocument 删除文档在对象存储中的原始字节。
func RemoveDocument(ctx context.Context, bucketName, documentID string) error {
	return MinioClient.RemoveObject(ctx, bucketName, ObjectName(documentID), minio.RemoveObjectOptions{})
}
