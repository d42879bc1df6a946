// Package app builds the HTTP router and everything it needs
package app

import (
	"bitwise74/identity-api/app/auth"
	"bitwise74/identity-api/app/root"
	"bitwise74/identity-api/config"
	"bitwise74/identity-api/db"
	"bitwise74/identity-api/internal"
	"bitwise74/identity-api/internal/service"
	"bitwise74/identity-api/pkg/middleware"
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"

	maxBodySize = 1 << 20
)

// NewRouter opens the database, wires the services and starts the
// background jobs. The jobs stop when ctx is done.
func NewRouter(ctx context.Context, c *config.Config) (*gin.Engine, error) {
	if err := makeLogger(c.App.LogLevel); err != nil {
		return nil, err
	}

	conn, err := db.New(c.DB)
	if err != nil {
		return nil, err
	}

	d := internal.NewDeps(c, conn)

	if c.Mail.Host == "" {
		zap.L().Warn("Mail host not set, verification and OTP mails won't be delivered")
	}

	// Expired secrets are already rejected on use, clearing them can wait
	service.TokenCleanup(ctx, time.Hour, d.Store)

	// Orphaned links only appear after manual user deletion
	service.AccountCleanup(ctx, time.Hour*24, d.Store)

	return Setup(ctx, d), nil
}

// Setup mounts every route on a fresh engine.
func Setup(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     d.Config.Host.CORS,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewJWTMiddleware(d.Auth)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled:     d.Config.Turnstile.Enabled,
		SecretToken: d.Config.Turnstile.SecretToken,
	})

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: d.Config.Security.RateLimit,
		Burst:             d.Config.Security.RateLimit * 2,
	})
	go limiter.Cleanup(ctx)
	rateLimit := limiter.Middleware()

	m := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/validate		-> Validates a bearer token
		m.GET("/validate", jwt, root.Validate)
	}

	a := m.Group("/auth", middleware.BodySizeLimiter(maxBodySize))
	{
		// POST /api/auth/register		-> Registers a new user and mails a verification link
		a.POST("/register", rateLimit, turnstile, func(c *gin.Context) { auth.Register(c, d) })

		// POST /api/auth/login		-> Logs in a verified user and returns a bearer token
		a.POST("/login", rateLimit, func(c *gin.Context) { auth.Login(c, d) })

		// GET /api/auth/verify-email/:token	-> Consumes a verification token
		a.GET("/verify-email/:token", rateLimit, func(c *gin.Context) { auth.VerifyEmail(c, d) })

		// POST /api/auth/resend-verification	-> Mails a fresh verification link
		a.POST("/resend-verification", rateLimit, turnstile, func(c *gin.Context) { auth.ResendVerification(c, d) })

		// POST /api/auth/forgot-password	-> Mails a password reset OTP
		a.POST("/forgot-password", rateLimit, turnstile, func(c *gin.Context) { auth.ForgotPassword(c, d) })

		// POST /api/auth/verify-otp		-> Checks a reset OTP without consuming it
		a.POST("/verify-otp", rateLimit, func(c *gin.Context) { auth.VerifyOTP(c, d) })

		// POST /api/auth/reset-password	-> Sets a new password using a reset OTP
		a.POST("/reset-password", rateLimit, func(c *gin.Context) { auth.ResetPassword(c, d) })

		// POST /api/auth/google-signin	-> Signs in with a Google ID token (native apps)
		a.POST("/google-signin", rateLimit, func(c *gin.Context) { auth.GoogleSignIn(c, d) })

		// GET /api/auth/google		-> Redirects to the Google consent screen
		a.GET("/google", func(c *gin.Context) { auth.GoogleRedirect(c, d) })

		// GET /api/auth/callback/google	-> Finishes the Google web flow
		a.GET("/callback/google", func(c *gin.Context) { auth.GoogleCallback(c, d) })

		// GET /api/auth/me		-> Returns the current user
		a.GET("/me", jwt, func(c *gin.Context) { auth.Me(c, d) })

		// PUT /api/auth/profile		-> Updates the current user
		a.PUT("/profile", jwt, func(c *gin.Context) { auth.UpdateProfile(c, d) })
	}

	return router
}

func makeLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q, %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger, %w", err)
	}

	zap.ReplaceGlobals(log)
	return nil
}
