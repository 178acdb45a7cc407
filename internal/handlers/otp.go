package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"backend/internal/mail"
	"backend/internal/models"
	"backend/internal/otp"
)

type requestOTPRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

type verifyOTPRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

type resetPasswordRequest struct {
	Phone       string `json:"phone" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// resolveOTPEmail finds where to deliver a code for the given phone. A
// registered account wins; otherwise the most recent guest order that
// recorded an email is used.
func resolveOTPEmail(ctx context.Context, db *mongo.Database, phone string) string {
	var user models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"phone": phone}).Decode(&user)
	if err == nil && user.Email != "" {
		return user.Email
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var order models.Order
	err = db.Collection("orders").FindOne(ctx, bson.M{
		"owner.guest.phone": phone,
		"owner.guest.email": bson.M{"$ne": ""},
	}, opts).Decode(&order)
	if err == nil && order.Owner.Guest != nil {
		return order.Owner.Guest.Email
	}
	return ""
}

func RequestOTP(db *mongo.Database, codes *otp.Store, mailer mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /request-otp"
		defer handlePanic(c, route)

		var req requestOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "phone and purpose are required")
			return
		}
		if !otp.ValidPurpose(req.Purpose) {
			respondWithError(c, http.StatusBadRequest, route, "unknown purpose")
			return
		}

		phone := strings.TrimSpace(req.Phone)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		email := resolveOTPEmail(ctx, db, phone)
		if email == "" {
			// The response never reveals whether the phone is known.
			c.JSON(http.StatusOK, gin.H{"message": "if the phone number is registered, a code has been sent"})
			return
		}

		code, err := codes.Issue(ctx, req.Purpose, phone)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "could not issue code")
			return
		}

		go func() {
			sendCtx, sendCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer sendCancel()
			if err := mailer.Send(sendCtx, email, "Your verification code",
				"Your verification code is "+code+". It expires in 5 minutes."); err != nil {
				logrus.WithFields(logrus.Fields{"route": route, "error": err.Error()}).Error("otp mail failed")
			}
		}()

		c.JSON(http.StatusOK, gin.H{"message": "if the phone number is registered, a code has been sent"})
	}
}

// VerifyOTP is the standalone check endpoint. It consumes the code, so a
// client that verifies here cannot reuse the same code elsewhere.
func VerifyOTP(codes *otp.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /verify-otp"
		defer handlePanic(c, route)

		var req verifyOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "phone, purpose and code are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := codes.Verify(ctx, req.Purpose, strings.TrimSpace(req.Phone), strings.TrimSpace(req.Code)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "code verified"})
	}
}

func ResetPassword(db *mongo.Database, codes *otp.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reset-password"
		defer handlePanic(c, route)

		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "phone, code and new_password (min 6 chars) are required")
			return
		}

		phone := strings.TrimSpace(req.Phone)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := codes.Verify(ctx, otp.PurposeReset, phone, strings.TrimSpace(req.Code)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, err.Error())
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "could not hash password")
			return
		}

		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"phone": phone},
			bson.M{"$set": bson.M{"passwordHash": string(hash)}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "no account for this phone number")
			return
		}

		logrus.WithFields(logrus.Fields{"route": route}).Info("password reset completed")
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}
