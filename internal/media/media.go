// Package media 上传图片存储
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("image is too large")
)

var allowedTypes = map[string]string{
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store 将图片保存到 root/posts 下，返回相对路径 posts/<uuid><ext>
type Store struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

func NewStore(root, urlPrefix string, maxBytes int64) *Store {
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Store{root: root, urlPrefix: urlPrefix, maxBytes: maxBytes}
}

func (s *Store) Root() string { return s.root }

// URL 相对路径转访问地址
func (s *Store) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.urlPrefix + rel
}

// SaveUpload 校验内容类型后落盘
func (s *Store) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.Save(f)
}

func (s *Store) Save(r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	ext, ok := allowedTypes[http.DetectContentType(head)]
	if !ok {
		return "", ErrNotImage
	}

	dir := filepath.Join(s.root, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	full := filepath.Join(dir, name)
	dst, err := os.Create(full)
	if err != nil {
		return "", err
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if s.maxBytes > 0 {
		// 多读一个字节用于判断是否超限
		src = io.LimitReader(src, s.maxBytes+1)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return path.Join("posts", name), nil
}

// Remove 删除已保存的图片，文件不存在不算错误
func (s *Store) Remove(rel string) error {
	if rel == "" || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
