package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/ai"
	"backend/internal/middleware"
	"backend/internal/models"
)

type createCommentRequest struct {
	Content    string `json:"content" binding:"required"`
	Rating     int    `json:"rating"`
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
}

type voteCommentRequest struct {
	Action       string `json:"action" binding:"required"`
	SessionToken string `json:"session_token"`
}

type replyCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type commentView struct {
	models.Comment
	AuthorName string `json:"authorName"`
	TimeAgo    string `json:"timeAgo"`
}

// timeAgo renders a coarse relative timestamp for comment listings.
func timeAgo(from, now time.Time) string {
	d := now.Sub(from)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%d months ago", int(d.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%d years ago", int(d.Hours()/(24*365)))
	}
}

/* =========================
   LIST
========================= */

func ListComments(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id/comments"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("comments").Find(ctx, bson.M{"productId": productID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		comments := make([]models.Comment, 0)
		if err := cursor.All(ctx, &comments); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		now := time.Now()
		views := make([]commentView, 0, len(comments))
		for _, comment := range comments {
			name := comment.GuestName
			if comment.UserID != nil {
				var user models.User
				if err := db.Collection("users").FindOne(ctx, bson.M{"_id": *comment.UserID}).Decode(&user); err == nil {
					name = user.Username
				}
			}
			views = append(views, commentView{
				Comment:    comment,
				AuthorName: name,
				TimeAgo:    timeAgo(comment.CreatedAt, now),
			})
		}

		c.JSON(http.StatusOK, views)
	}
}

/* =========================
   CREATE (purchase-gated)
========================= */

// hasPurchased reports whether the identity has any order item for the
// product. Payment status is deliberately not filtered here; a pending
// purchase already counts.
func hasPurchased(ctx context.Context, db *mongo.Database, productID primitive.ObjectID, userID *primitive.ObjectID, guestPhone string) (bool, error) {
	filter := bson.M{"items.productId": productID}
	if userID != nil {
		filter["owner.userId"] = *userID
	} else {
		filter["owner.guest.phone"] = guestPhone
	}

	count, err := db.Collection("orders").CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validRating accepts 1..5, or zero for a comment that carries no rating
// at all (the rating aggregation skips zeros).
func validRating(rating int) bool {
	return rating == 0 || (rating >= 1 && rating <= 5)
}

func CreateComment(db *mongo.Database, jwtSecret string, moderator *ai.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/comments"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "content is required")
			return
		}
		if !validRating(req.Rating) {
			respondWithError(c, http.StatusBadRequest, route, "rating must be between 1 and 5")
			return
		}

		comment := models.Comment{
			ProductID: productID,
			Content:   strings.TrimSpace(req.Content),
			Rating:    req.Rating,
			CreatedAt: time.Now(),
		}

		var isStaff bool
		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			subject, err := middleware.ParseBearer(header, jwtSecret)
			if err != nil {
				respondWithError(c, http.StatusUnauthorized, route, "invalid token")
				return
			}
			id := subject.UserID
			comment.UserID = &id
			isStaff = subject.Role.IsStaff()
		} else {
			comment.GuestName = strings.TrimSpace(req.GuestName)
			comment.GuestPhone = strings.TrimSpace(req.GuestPhone)
			if comment.GuestName == "" || comment.GuestPhone == "" {
				respondWithError(c, http.StatusBadRequest, route, "guest_name and guest_phone are required")
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		// Staff comment without buying; everyone else must have an order item
		// for the product.
		if !isStaff {
			purchased, err := hasPurchased(ctx, db, productID, comment.UserID, comment.GuestPhone)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if !purchased {
				respondWithError(c, http.StatusForbidden, route, "you can only review products you have ordered")
				return
			}
		}

		// Moderation is advisory: if the service is down, the comment goes
		// through rather than blocking the shopper.
		if moderator != nil {
			allowed, err := moderator.ModerateComment(ctx, comment.Content)
			if err != nil {
				logrus.WithFields(logrus.Fields{"route": route, "error": err.Error()}).Warn("moderation unavailable, allowing comment")
			} else if !allowed {
				respondWithError(c, http.StatusBadRequest, route, "comment rejected by moderation")
				return
			}
		}

		res, err := db.Collection("comments").InsertOne(ctx, comment)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		comment.ID = res.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, comment)
	}
}

/* =========================
   VOTING
========================= */

// voterKeyFromRequest prefers the authenticated identity, falling back to the
// caller-supplied anonymous session token.
func voterKeyFromRequest(c *gin.Context, jwtSecret, sessionToken string) (string, error) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		subject, err := middleware.ParseBearer(header, jwtSecret)
		if err != nil {
			return "", err
		}
		return "user:" + subject.UserID.Hex(), nil
	}
	token := strings.TrimSpace(sessionToken)
	if token == "" {
		return "", fmt.Errorf("session_token required for anonymous votes")
	}
	return "session:" + token, nil
}

// VoteComment applies toggle/overwrite semantics: repeating the same action
// removes the vote, a different action replaces it. The denormalized likes
// counter is recomputed from the votes collection afterwards.
func VoteComment(db *mongo.Database, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /comments/:id/vote"
		defer handlePanic(c, route)

		commentID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req voteCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "action is required")
			return
		}
		if req.Action != models.VoteLike && req.Action != models.VoteDislike {
			respondWithError(c, http.StatusBadRequest, route, "action must be like or dislike")
			return
		}

		voterKey, err := voterKeyFromRequest(c, jwtSecret, req.SessionToken)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, err := db.Collection("comments").CountDocuments(ctx, bson.M{"_id": commentID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count == 0 {
			respondWithError(c, http.StatusNotFound, route, "comment not found")
			return
		}

		votes := db.Collection("comment_votes")
		filter := bson.M{"commentId": commentID, "voterKey": voterKey}

		var existing models.CommentVote
		err = votes.FindOne(ctx, filter).Decode(&existing)
		switch {
		case err == mongo.ErrNoDocuments:
			_, err = votes.InsertOne(ctx, models.CommentVote{
				CommentID: commentID,
				VoterKey:  voterKey,
				Action:    req.Action,
				CreatedAt: time.Now(),
			})
		case err == nil && existing.Action == req.Action:
			// Toggle off.
			_, err = votes.DeleteOne(ctx, filter)
		case err == nil:
			// Overwrite with the other action.
			_, err = votes.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"action": req.Action}})
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		likes, err := recomputeLikes(ctx, db, commentID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"likes": likes})
	}
}

func recomputeLikes(ctx context.Context, db *mongo.Database, commentID primitive.ObjectID) (int, error) {
	likes, err := db.Collection("comment_votes").CountDocuments(ctx, bson.M{
		"commentId": commentID,
		"action":    models.VoteLike,
	})
	if err != nil {
		return 0, err
	}

	_, err = db.Collection("comments").UpdateOne(ctx,
		bson.M{"_id": commentID},
		bson.M{"$set": bson.M{"likes": int(likes)}},
	)
	return int(likes), err
}

/* =========================
   STAFF REPLY
========================= */

// ReplyComment sets the single staff reply slot, overwriting any prior reply.
func ReplyComment(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/comments/:id/reply"
		defer handlePanic(c, route)

		subject, ok := middleware.SubjectFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		commentID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req replyCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "content is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reply := models.CommentReply{
			Content:   strings.TrimSpace(req.Content),
			Role:      string(subject.Role),
			RepliedAt: time.Now(),
		}

		res, err := db.Collection("comments").UpdateOne(ctx,
			bson.M{"_id": commentID},
			bson.M{"$set": bson.M{"reply": reply}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "comment not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "reply saved", "reply": reply})
	}
}
