// Package article はフェッチ済みボディからの記事抽出を提供する。
// フィード形式のパース自体はgofeedに委譲し、抽出結果を
// 配信ディスパッチャが扱うドメインモデルに変換する。
package article

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feednotify/internal/model"
	"github.com/hitoshi/feednotify/internal/security"
)

// Extractor はフィードボディから記事を抽出する。
type Extractor struct {
	sanitizer security.ContentSanitizerService
}

// NewExtractor はExtractorの新しいインスタンスを生成する。
func NewExtractor(sanitizer security.ContentSanitizerService) *Extractor {
	return &Extractor{sanitizer: sanitizer}
}

// Extract はデコード済みボディをパースして記事一覧を返す。
// コンテンツとサマリーはサニタイズ済みで返す。
// パース失敗はエラーとして返し、呼び出し側で終端ステータスに変換する。
func (e *Extractor) Extract(feedID, feedURL, body string) ([]model.Article, error) {
	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		article := model.Article{
			ID:          uuid.NewString(),
			FeedID:      feedID,
			FeedURL:     feedURL,
			Title:       item.Title,
			Link:        item.Link,
			Description: e.sanitizer.Sanitize(item.Description),
			Content:     e.sanitizer.Sanitize(item.Content),
		}

		// 著者情報
		if item.Author != nil {
			article.Author = item.Author.Name
		}
		if article.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			article.Author = item.Authors[0].Name
		}

		// 画像
		if item.Image != nil {
			article.ImageURL = item.Image.URL
		}

		// 公開日時
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			article.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			article.PublishedAt = &t
		}

		// Contentが空の場合はDescriptionを使用
		if article.Content == "" && article.Description != "" {
			article.Content = article.Description
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if article.Link == "" && item.GUID != "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			article.Link = item.GUID
		}

		articles = append(articles, article)
	}

	return articles, nil
}
