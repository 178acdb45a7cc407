package main

import (
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"backend/internal/ai"
	"backend/internal/authz"
	"backend/internal/chat"
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handlers"
	"backend/internal/mail"
	"backend/internal/middleware"
	"backend/internal/otp"
	"backend/internal/payment"
)

func main() {
	config.InitLogger()
	cfg := config.Load()

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logrus.Fatal("mongodb connect: ", err)
	}
	db := client.Database(cfg.DBName)
	logrus.Info("MongoDB connected to: ", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		logrus.Warn("user index warning: ", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		logrus.Warn("order index warning: ", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		logrus.Warn("cart index warning: ", err)
	}
	if err := database.EnsureCommentIndexes(db); err != nil {
		logrus.Warn("comment index warning: ", err)
	}
	if err := database.EnsureStockInIndexes(db); err != nil {
		logrus.Warn("stockin index warning: ", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	locker := redislock.New(rdb)
	codes := otp.NewStore(rdb)

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	gateway := payment.NewClient(payment.Config{
		PartnerCode: cfg.MomoPartnerCode,
		AccessKey:   cfg.MomoAccessKey,
		SecretKey:   cfg.MomoSecretKey,
		Endpoint:    cfg.MomoEndpoint,
		RedirectURL: cfg.MomoRedirectURL,
		IPNURL:      cfg.MomoIPNURL,
	})

	assistant := ai.NewClient(cfg.AIEndpoint, cfg.AIKey)
	hub := chat.NewHub()
	policy := authz.Policy{}

	handlers.RegisterValidators()

	r := gin.Default()
	r.Static("/public", "./public")

	// auth
	r.POST("/auth/register", handlers.Register(db))
	r.POST("/auth/login", handlers.Login(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	r.POST("/auth/refresh", handlers.Refresh(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	r.POST("/auth/logout", handlers.Logout(db))
	r.GET("/auth/me", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.GetMe(db))
	r.PUT("/auth/me", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.UpdateMe(db))

	// catalog
	r.GET("/products", handlers.ListProducts(db))
	r.GET("/products/search", handlers.SearchProducts(db))
	r.GET("/products/:id", handlers.GetProduct(db))
	r.GET("/products/:id/related", handlers.RelatedProducts(db))
	r.GET("/categories", handlers.ListCategories(db))
	r.GET("/brands", handlers.ListBrands(db))

	// comments
	r.GET("/products/:id/comments", handlers.ListComments(db))
	r.POST("/products/:id/comments", handlers.CreateComment(db, cfg.JWTSecret, assistant))
	r.POST("/comments/:id/vote", handlers.VoteComment(db, cfg.JWTSecret))

	// checkout and orders
	r.POST("/buy", handlers.BuyNow(db, cfg.JWTSecret))
	r.POST("/create_order_from_cart", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.CreateOrderFromCart(db))
	r.GET("/orders", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.GetMyOrders(db))
	r.PUT("/orders/:id/cancel", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.CancelOrder(db))
	r.PUT("/orders/:id/confirm_received", middleware.RequireAuth(cfg.JWTSecret, policy), handlers.ConfirmReceived(db, mailer))
	r.POST("/orders/guest", handlers.GuestOrders(db, codes))

	// payment
	r.POST("/api/create_momo_payment/:order_id", handlers.CreateMomoPayment(db, gateway))
	r.POST("/api/payment_callback/:momo_order_id", handlers.MomoCallback(db, gateway, mailer))
	r.POST("/api/pay_cod/:order_id", handlers.PayCOD(db, mailer))

	// otp
	r.POST("/request-otp", handlers.RequestOTP(db, codes, mailer))
	r.POST("/verify-otp", handlers.VerifyOTP(codes))
	r.POST("/reset-password", handlers.ResetPassword(db, codes))

	// cart
	cart := r.Group("/cart")
	cart.Use(middleware.RequireAuth(cfg.JWTSecret, policy))
	{
		cart.GET("", handlers.GetCart(db))
		cart.POST("", handlers.AddToCart(db))
		cart.PUT("/:product_id", handlers.UpdateCartItem(db))
		cart.DELETE("/:product_id", handlers.RemoveCartItem(db))
		cart.DELETE("", handlers.ClearCart(db))
	}

	// chatbot and chat widget
	r.POST("/api/chatbot", handlers.Chatbot(assistant))
	r.GET("/ws/chat", hub.HandleClient())
	r.GET("/ws/admin-chat", middleware.RequireAuth(cfg.JWTSecret, policy, authz.RoleStaff), hub.HandleAdmin())

	// staff endpoints
	staff := r.Group("/admin")
	staff.Use(middleware.RequireAuth(cfg.JWTSecret, policy, authz.RoleStaff))
	{
		staff.GET("/products", handlers.AdminListProducts(db))
		staff.POST("/products", handlers.AdminCreateProduct(db))
		staff.PUT("/products/:id", handlers.AdminUpdateProduct(db))
		staff.DELETE("/products/:id", handlers.AdminDeleteProduct(db))

		staff.GET("/orders", handlers.AdminListOrders(db))
		staff.PUT("/orders/:id/delivery_status", handlers.AdminUpdateDeliveryStatus(db))
		staff.PUT("/orders/:id/payment_status", handlers.AdminUpdatePaymentStatus(db, mailer))

		staff.GET("/stockin", handlers.ListStockIns(db))
		staff.GET("/stockin/:id/logs", handlers.ListStockInLogs(db))
		staff.POST("/stockin", handlers.StockInBatch(db, locker))
		staff.PUT("/stockin/:id", handlers.StockInCorrection(db, locker))

		staff.PUT("/comments/:id/reply", handlers.ReplyComment(db))

		staff.GET("/stats", handlers.AdminStats(db))
		staff.GET("/stats/top_products", handlers.TopSellingProducts(db))
	}

	// catalog management is admin-only
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuth(cfg.JWTSecret, policy, authz.RoleAdmin))
	{
		admin.POST("/categories", handlers.AdminCreateCategory(db))
		admin.PUT("/categories/:id", handlers.AdminUpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.AdminDeleteCategory(db))
		admin.POST("/brands", handlers.AdminCreateBrand(db))
		admin.DELETE("/brands/:id", handlers.AdminDeleteBrand(db))
		admin.DELETE("/orders/:id", handlers.AdminDeleteOrder(db))
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.Fatal(err)
	}
}
