// Package objectstore はフェッチ済みボディの永続保存先を提供する。
// 保存キーはキャッシュキーとは独立した不透明な識別子で、呼び出しごとに
// 新しく生成される。アップロード失敗はログに残すだけでフェッチ処理を
// 失敗させない方針のため、呼び出し側はエラーを致命的に扱わないこと。
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store は永続オブジェクトストレージのインターフェースを定義する。
type Store interface {
	// UploadFeedHTMLContent は指定キーでボディを永続保存する。
	UploadFeedHTMLContent(ctx context.Context, key, body string) error
}

// FilesystemStore はローカルファイルシステムによるStore実装。
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore はFilesystemStoreを生成する。
// 保存先ディレクトリが存在しない場合は作成する。
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("オブジェクトストレージディレクトリの作成に失敗しました: %w", err)
	}
	return &FilesystemStore{dir: dir}, nil
}

// UploadFeedHTMLContent は指定キーでボディをファイルとして保存する。
// 同一キーへの再アップロードは上書きになる。
func (s *FilesystemStore) UploadFeedHTMLContent(_ context.Context, key, body string) error {
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("オブジェクトの書き込みに失敗しました: %w", err)
	}
	return nil
}
