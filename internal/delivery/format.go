package delivery

import (
	"strconv"
	"time"

	"github.com/hitoshi/feednotify/internal/model"
)

// wireEmbed は配信先APIに送る埋め込みブロックのワイヤ表現。
type wireEmbed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Color       int         `json:"color,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Author      *wireAuthor `json:"author,omitempty"`
	Footer      *wireFooter `json:"footer,omitempty"`
	Image       *wireImage  `json:"image,omitempty"`
	Thumbnail   *wireImage  `json:"thumbnail,omitempty"`
	Fields      []wireField `json:"fields,omitempty"`
}

type wireAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireImage struct {
	URL string `json:"url"`
}

type wireField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// messagePayload は配信先APIに送るメッセージボディ。
// UsernameとAvatarURLはWebhook配信でのみ使用する。
type messagePayload struct {
	Content   string      `json:"content,omitempty"`
	Embeds    []wireEmbed `json:"embeds,omitempty"`
	Username  string      `json:"username,omitempty"`
	AvatarURL string      `json:"avatar_url,omitempty"`
}

// renderEmbeds は埋め込みテンプレート列を記事フィールドで置換して
// ワイヤ表現に変換する。
func renderEmbeds(r Renderer, article model.Article, embeds []model.Embed, now time.Time) []wireEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]wireEmbed, 0, len(embeds))
	for _, e := range embeds {
		out = append(out, renderEmbed(r, article, e, now))
	}
	return out
}

// renderEmbed は埋め込みテンプレート1件を置換する。
// 各サブブロックは独立に置換され、必須フィールドが置換後に空になった
// サブブロックは埋め込み全体を失敗させずにそのブロックだけ省略される。
func renderEmbed(r Renderer, article model.Article, e model.Embed, now time.Time) wireEmbed {
	w := wireEmbed{
		Title:       r.Render(e.Title, article),
		Description: r.Render(e.Description, article),
		URL:         r.Render(e.URL, article),
	}

	if e.Color != "" {
		// 色は10進数値のみ受け付ける。数値でない場合は省略する。
		if color, err := strconv.Atoi(r.Render(e.Color, article)); err == nil {
			w.Color = color
		}
	}

	switch e.Timestamp {
	case model.EmbedTimestampNow:
		w.Timestamp = now.UTC().Format(time.RFC3339)
	case model.EmbedTimestampArticle:
		if article.PublishedAt != nil {
			w.Timestamp = article.PublishedAt.UTC().Format(time.RFC3339)
		}
	}

	if e.Author != nil {
		if name := r.Render(e.Author.Name, article); name != "" {
			w.Author = &wireAuthor{
				Name:    name,
				URL:     r.Render(e.Author.URL, article),
				IconURL: r.Render(e.Author.IconURL, article),
			}
		}
	}
	if e.Footer != nil {
		if text := r.Render(e.Footer.Text, article); text != "" {
			w.Footer = &wireFooter{
				Text:    text,
				IconURL: r.Render(e.Footer.IconURL, article),
			}
		}
	}
	if e.Image != nil {
		if url := r.Render(e.Image.URL, article); url != "" {
			w.Image = &wireImage{URL: url}
		}
	}
	if e.Thumbnail != nil {
		if url := r.Render(e.Thumbnail.URL, article); url != "" {
			w.Thumbnail = &wireImage{URL: url}
		}
	}
	for _, f := range e.Fields {
		name := r.Render(f.Name, article)
		value := r.Render(f.Value, article)
		if name == "" || value == "" {
			continue
		}
		w.Fields = append(w.Fields, wireField{Name: name, Value: value, Inline: f.Inline})
	}

	return w
}
