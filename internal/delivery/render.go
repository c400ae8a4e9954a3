// Package delivery は記事の配信メッセージ整形とプロデューサへの引き渡しを行う。
package delivery

import (
	"strings"

	"github.com/hitoshi/feednotify/internal/model"
)

// Renderer はテンプレート文字列に記事フィールドを置換する。
type Renderer interface {
	Render(template string, article model.Article) string
}

// PlaceholderRenderer は{{placeholder}}形式の単純置換を行うRenderer実装。
// 未知のプレースホルダはそのまま残す。
type PlaceholderRenderer struct{}

// NewPlaceholderRenderer はPlaceholderRendererの新しいインスタンスを生成する。
func NewPlaceholderRenderer() *PlaceholderRenderer {
	return &PlaceholderRenderer{}
}

// Render はテンプレート中のプレースホルダを記事フィールドで置換する。
func (r *PlaceholderRenderer) Render(template string, article model.Article) string {
	if template == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"{{title}}", article.Title,
		"{{link}}", article.Link,
		"{{url}}", article.Link,
		"{{description}}", article.Description,
		"{{content}}", article.Content,
		"{{author}}", article.Author,
		"{{image}}", article.ImageURL,
		"{{feed_url}}", article.FeedURL,
	)
	return replacer.Replace(template)
}
