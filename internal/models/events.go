package models

// GroupEvent is emitted over WebSocket connections for groups.
type GroupEvent struct {
	Type        string      `json:"type"`
	GroupID     string      `json:"group_id"`
	Membership  *Membership `json:"membership,omitempty"`
	VideoID     string      `json:"video_id,omitempty"`
	Likes       *int        `json:"likes,omitempty"`
	MemberCount *int        `json:"member_count,omitempty"`
}

// Group event types.
const (
	EventMemberJoined  = "member_joined"
	EventMemberRemoved = "member_removed"
	EventLikesChanged  = "likes_changed"
)
