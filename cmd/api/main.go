package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/absence"
	"classtrack/internal/auth"
	"classtrack/internal/cache"
	"classtrack/internal/cloudinary"
	"classtrack/internal/config"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/insight"
	"classtrack/internal/notify"
	"classtrack/internal/queue"
	"classtrack/internal/session"
	"classtrack/internal/sessioncode"
	"classtrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// mailboxes tracks one notification mailbox per signed-in user, created at
// login and dropped at logout or session expiry.
type mailboxes struct {
	mu    sync.Mutex
	store notify.Store
	byID  map[string]*notify.Mailbox
}

func (m *mailboxes) get(userID string) *notify.Mailbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	mb, ok := m.byID[userID]
	if !ok {
		mb = notify.NewMailbox(m.store, userID)
		m.byID[userID] = mb
	}
	return mb
}

func (m *mailboxes) drop(userID string) {
	m.mu.Lock()
	delete(m.byID, userID)
	m.mu.Unlock()
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:events")
	}

	userRepo := auth.NewRepository(db.Client)
	absRepo := absence.NewRepository(db.Client)
	absSvc := absence.NewService(absRepo)
	notifyRepo := notify.NewRepository(db.Client)
	boxes := &mailboxes{store: notifyRepo, byID: make(map[string]*notify.Mailbox)}

	records := cache.New(cfg.CacheTTL, prometheus.DefaultRegisterer)
	ranks := insight.NewRankSnapshot(redisClient.Client)

	recomputes := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_insight_recomputes_total",
		Help: "Derived-metric recomputations by endpoint.",
	}, []string{"endpoint"})

	sessions := session.NewManager(cfg.SessionTimeout, cfg.WarningWindow, func(id string) {
		log.Printf("session %s expired, forcing logout", id)
		boxes.drop(id)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.Run(ctx)
	go records.Run(ctx, cfg.CacheRevalidateTick)

	// Cloudinary client for justification documents (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := userRepo.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		tokens, err := auth.Issue(user.ID, user.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = userRepo.SaveRefreshToken(c.Request.Context(), user.ID, tokens.RefreshToken, tokens.RefreshExp)

		sessions.Start(user.ID)

		c.JSON(http.StatusOK, gin.H{
			"token":         tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"user":          user,
		})
	})

	authed := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.POST("/logout", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sessions.End(claims.Subject)
		boxes.drop(claims.Subject)
		_ = userRepo.RevokeRefreshTokens(c.Request.Context(), claims.Subject)
		c.Status(http.StatusNoContent)
	})

	// Idle-session countdown. Touch covers pointer/key/scroll/touch events;
	// acknowledge is the explicit "stay logged in" action.
	authed.GET("/session", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		phase, remaining, ok := sessions.State(claims.Subject)
		if !ok {
			c.JSON(http.StatusGone, gin.H{"error": "session expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"phase": phase, "remaining_seconds": int(remaining.Seconds())})
	})

	authed.POST("/session/touch", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sessions.Touch(claims.Subject)
		c.Status(http.StatusNoContent)
	})

	authed.POST("/session/acknowledge", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		sessions.Acknowledge(claims.Subject)
		c.Status(http.StatusNoContent)
	})

	authed.GET("/students", func(c *gin.Context) {
		students, err := cache.Fetch(c.Request.Context(), records, "students", func(ctx context.Context) ([]absence.StudentSummary, error) {
			return absRepo.ListStudentSummaries(ctx)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": students})
	})

	authed.GET("/absences", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		f := absence.ListFilter{
			StudentID: c.Query("student_id"),
			Group:     c.Query("group"),
			Status:    c.Query("status"),
		}
		if claims.Role == auth.RoleStudent {
			f.StudentID = claims.Subject
		}
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				f.Limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				f.Offset = parsed
			}
		}
		key := "absences:" + f.StudentID + ":" + f.Group + ":" + f.Status + ":" + strconv.Itoa(f.Limit) + ":" + strconv.Itoa(f.Offset)
		recs, err := cache.Fetch(c.Request.Context(), records, key, func(ctx context.Context) ([]absence.Record, error) {
			return absRepo.ListRecords(ctx, f)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": recs})
	})

	teacherOrAdmin := authed.Group("", auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin))

	teacherOrAdmin.POST("/absences", func(c *gin.Context) {
		var req struct {
			StudentID   string  `json:"student_id" binding:"required"`
			StudentName string  `json:"student_name"`
			GroupName   string  `json:"group_name"`
			Date        string  `json:"date" binding:"required"`
			StartTime   string  `json:"start_time"`
			EndTime     string  `json:"end_time"`
			Hours       float64 `json:"hours" binding:"required"`
			Subject     string  `json:"subject"`
			TeacherName string  `json:"teacher_name"`
			Notes       string  `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		rec, err := absSvc.Mark(c.Request.Context(), absence.Record{
			StudentID:   req.StudentID,
			StudentName: req.StudentName,
			GroupName:   req.GroupName,
			Date:        date,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			Hours:       req.Hours,
			Subject:     req.Subject,
			TeacherName: req.TeacherName,
			Notes:       req.Notes,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		records.Invalidate("students")
		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeAbsence, Body: []byte(rec.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusCreated, gin.H{"data": rec})
	})

	teacherOrAdmin.PATCH("/absences/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := absSvc.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		records.Invalidate("students")
		c.Status(http.StatusNoContent)
	})

	// Justification upload: multipart with reason + document file. The
	// document goes to Cloudinary; we keep only the URL.
	authed.POST("/justifications", func(c *gin.Context) {
		reason := c.PostForm("reason")
		absenceID := c.PostForm("absence_id")

		j := absence.Justification{AbsenceID: absenceID, Reason: reason}

		if file, header, ferr := c.Request.FormFile("file"); ferr == nil {
			defer file.Close()
			if cdnClient == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document storage not configured"})
				return
			}
			data, rerr := io.ReadAll(file)
			if rerr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
				return
			}
			result, uerr := cdnClient.Upload(data, header.Filename)
			if uerr != nil {
				log.Printf("cloudinary upload failed: %v", uerr)
				c.JSON(http.StatusBadGateway, gin.H{"error": "document upload failed"})
				return
			}
			j.FileName = header.Filename
			j.FileURL = result.SecureURL
			j.FileType = "image"
			if result.Format == "pdf" {
				j.FileType = "pdf"
			}
		}

		saved, err := absSvc.SubmitJustification(c.Request.Context(), j)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": saved})
	})

	teacherOrAdmin.GET("/justifications", func(c *gin.Context) {
		list, err := absRepo.ListJustifications(c.Request.Context(), c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	})

	authed.Group("", auth.RequireRole(auth.RoleAdmin)).PATCH("/justifications/:id/review", func(c *gin.Context) {
		var req struct {
			Approve *bool `json:"approve" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		j, err := absSvc.Review(c.Request.Context(), c.Param("id"), *req.Approve)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		records.Invalidate("students")
		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeJustification, Body: []byte(j.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"data": j})
	})

	// Derived insights are recomputed per request from cached records; the
	// engine itself is pure, so cost is bounded by the cache TTL.
	authed.GET("/insights/risk", func(c *gin.Context) {
		students, err := cache.Fetch(c.Request.Context(), records, "students", func(ctx context.Context) ([]absence.StudentSummary, error) {
			return absRepo.ListStudentSummaries(ctx)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recomputes.WithLabelValues("risk").Inc()
		now := time.Now()
		c.JSON(http.StatusOK, gin.H{"data": insight.AssessRisk(students, now, insight.TermFor(now))})
	})

	authed.GET("/insights/leaderboard", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		students, err := cache.Fetch(c.Request.Context(), records, "students", func(ctx context.Context) ([]absence.StudentSummary, error) {
			return absRepo.ListStudentSummaries(ctx)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recomputes.WithLabelValues("leaderboard").Inc()
		lb := insight.BuildLeaderboard(students)
		if err := ranks.Save(c.Request.Context(), lb); err != nil {
			log.Printf("rank snapshot save failed: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"data": lb.Top, "my_rank": lb.RankOf(claims.Subject)})
	})

	// Rank lookup from the redis snapshot; cheap enough for the student
	// dashboard to poll without forcing a leaderboard recompute.
	authed.GET("/insights/rank", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		pos, err := ranks.Rank(c.Request.Context(), claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rank": pos})
	})

	authed.GET("/insights/patterns", func(c *gin.Context) {
		recs, err := cache.Fetch(c.Request.Context(), records, "absences:patterns", func(ctx context.Context) ([]absence.Record, error) {
			return absRepo.ListRecords(ctx, absence.ListFilter{Limit: 500})
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recomputes.WithLabelValues("patterns").Inc()
		c.JSON(http.StatusOK, gin.H{
			"data":         insight.DetectPatterns(recs),
			"distribution": insight.WeekdayDistribution(recs),
		})
	})

	authed.GET("/insights/heatmap", func(c *gin.Context) {
		recs, err := cache.Fetch(c.Request.Context(), records, "absences:patterns", func(ctx context.Context) ([]absence.Record, error) {
			return absRepo.ListRecords(ctx, absence.ListFilter{Limit: 500})
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		weeks := 8
		if v := c.Query("weeks"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				weeks = parsed
			}
		}
		recomputes.WithLabelValues("heatmap").Inc()
		c.JSON(http.StatusOK, gin.H{"data": insight.Heatmap(recs, time.Now(), weeks)})
	})

	authed.GET("/sessions/code", func(c *gin.Context) {
		groupID, err := strconv.Atoi(c.Query("group_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group_id required"})
			return
		}
		date := c.Query("date")
		startTime := c.Query("start_time")
		if date == "" || startTime == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date and start_time required"})
			return
		}
		code := sessioncode.Code(groupID, date, startTime)
		c.JSON(http.StatusOK, gin.H{"code": code, "grid": sessioncode.Grid(code)})
	})

	authed.GET("/notifications", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		mb := boxes.get(claims.Subject)
		if err := mb.Fetch(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": mb.Items(), "unread_count": mb.UnreadCount()})
	})

	authed.GET("/notifications/popups", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		mb := boxes.get(claims.Subject)
		if err := mb.Fetch(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": mb.StagePopups(time.Now())})
	})

	authed.POST("/notifications/:id/read", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := boxes.get(claims.Subject).MarkRead(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	authed.POST("/notifications/read-all", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := boxes.get(claims.Subject).MarkAllRead(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	authed.DELETE("/notifications", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		if err := boxes.get(claims.Subject).Clear(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
