package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	VoteLike    = "like"
	VoteDislike = "dislike"
)

// CommentReply is the single mutable staff reply on a comment.
type CommentReply struct {
	Content   string    `bson:"content" json:"content"`
	Role      string    `bson:"role" json:"role"`
	RepliedAt time.Time `bson:"repliedAt" json:"repliedAt"`
}

// Comment is authored by either a registered user or a guest (name+phone).
// Likes is a denormalized counter recomputed on every vote.
type Comment struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ProductID  primitive.ObjectID  `bson:"productId" json:"productId"`
	UserID     *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	GuestName  string              `bson:"guestName,omitempty" json:"guestName,omitempty"`
	GuestPhone string              `bson:"guestPhone,omitempty" json:"guestPhone,omitempty"`
	Content    string              `bson:"content" json:"content"`
	Rating     int                 `bson:"rating" json:"rating"`
	Likes      int                 `bson:"likes" json:"likes"`
	Reply      *CommentReply       `bson:"reply,omitempty" json:"reply,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
}

// CommentVote holds one vote per (comment, voter). VoterKey is either
// "user:<id>" or "session:<token>" so registered and anonymous identities
// share one uniqueness constraint.
type CommentVote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CommentID primitive.ObjectID `bson:"commentId" json:"commentId"`
	VoterKey  string             `bson:"voterKey" json:"voterKey"`
	Action    string             `bson:"action" json:"action"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
