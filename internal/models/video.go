package models

import "time"

// Video carries only the fields the like counter needs.
type Video struct {
	ID      string `db:"id" json:"id"`
	GroupID string `db:"group_id" json:"group_id"`
	OwnerID string `db:"owner_id" json:"owner_id"`
	Likes   int    `db:"likes" json:"likes"`
}

// Like records that a user liked a video.
type Like struct {
	UserID    string    `db:"user_id" json:"user_id"`
	VideoID   string    `db:"video_id" json:"video_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LikeResult is the backend answer to a like toggle.
type LikeResult struct {
	Liked    bool `json:"liked"`
	NewCount int  `json:"new_count"`
}
