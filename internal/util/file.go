package util

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
)

// ValidateMimeType 读取前 512 字节检测 MIME 类型
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/", "video/", "application/pdf"
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeVideo)
}

// ResourceKind 把检测到的 MIME 类型归类为资源类型
func ResourceKind(mimeType string) string {
	switch {
	case mimeType == MimePDF:
		return "pdf"
	case IsVideo(mimeType):
		return "video"
	case IsImage(mimeType):
		return "image"
	default:
		return "document"
	}
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateRandomString(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(randomAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = randomAlphabet[i%len(randomAlphabet)]
			continue
		}
		b[i] = randomAlphabet[idx.Int64()]
	}
	return string(b)
}
