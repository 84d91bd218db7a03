package models

import (
	"time"
)

// Result はresultsテーブルの1レコード（1回のゲームの最終スコア）です。
type Result struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RankedResult はランキング表示用に順位を付けた結果です。
// ランキングはユーザーごとの自己ベストで作られます。
type RankedResult struct {
	Result
	Rank int `json:"rank"`
}
