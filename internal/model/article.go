package model

import "time"

// Article はフィードから抽出された1記事を表す。
// フェッチ済みボディからの抽出処理が生成し、配信ディスパッチャが消費する。
type Article struct {
	ID             string
	FeedID         string
	FeedURL        string
	OrganizationID string
	Title          string
	Link           string
	Description    string
	Content        string
	Author         string
	ImageURL       string
	PublishedAt    *time.Time
}
