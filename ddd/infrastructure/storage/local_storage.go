package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"distribution-service/ddd/domain/gateway"
)

// LocalStorage 以本地目录作为持久化存储，storage.backend=local 时使用
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage 创建本地存储；baseURL 为空时返回 file:// 地址
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

var _ gateway.StorageGateway = (*LocalStorage)(nil)

func (s *LocalStorage) objectPath(objectKey string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectKey))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(s.root, clean), nil
}

// PutFile 先写临时文件再改名，同一 key 重复写入只保留一份
func (s *LocalStorage) PutFile(_ context.Context, localPath, objectKey, _ string) (string, error) {
	dst, err := s.objectPath(objectKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	tmp := dst + ".part"
	if err := copyFile(localPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return s.ObjectURL(objectKey), nil
}

func (s *LocalStorage) DownloadFile(_ context.Context, objectKey, localPath string) error {
	src, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return copyFile(src, localPath)
}

func (s *LocalStorage) DeleteObject(_ context.Context, objectKey string) error {
	p, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) ObjectURL(objectKey string) string {
	key := strings.TrimLeft(objectKey, "/")
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return "file://" + filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
