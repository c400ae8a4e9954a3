package fetcher

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// CompressBody はデコード済みボディをgzip圧縮し、base64文字列として返す。
// キャッシュストアおよび永続オブジェクトストレージへの保存形式。
func CompressBody(text string) (string, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("ボディの圧縮に失敗しました: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("ボディの圧縮に失敗しました: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressBody はbase64エンコードされた圧縮済みボディを展開して返す。
func DecompressBody(encoded string) (string, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("ボディのbase64デコードに失敗しました: %w", err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("ボディの展開に失敗しました: %w", err)
	}
	defer gr.Close()

	text, err := io.ReadAll(gr)
	if err != nil {
		return "", fmt.Errorf("ボディの展開に失敗しました: %w", err)
	}
	return string(text), nil
}
