package router

import (
	"net/http"
	"slices"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/handler"
	"github.com/MiddyPham/middy-corner-back-end/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionName = "middy_session"

// Options configures the engine around the API handlers.
type Options struct {
	SessionSecret  string
	UploadDir      string
	UploadURLPath  string
	AllowedOrigins []string
	SecureCookies  bool
}

// SetupRouter builds the gin engine with middleware and routes.
func SetupRouter(opts Options, api *handler.API, authenticator middleware.Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(gin.CustomRecovery(middleware.HandlePanics()))
	if c, ok := corsConfig(opts.AllowedOrigins); ok {
		r.Use(cors.New(c))
	}

	// Sessions only hold the OAuth state.
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	if opts.UploadDir != "" && opts.UploadURLPath != "" {
		r.Static(opts.UploadURLPath, opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "route not found"}})
	})

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.Auth(authenticator))
	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := apiGroup.Group("", middleware.RequireAuth())
	admin := apiGroup.Group("", middleware.RequireAdmin())

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", api.Register)
		authGroup.POST("/login", api.Login)
		authGroup.POST("/refresh", api.Refresh)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/:provider", api.OAuthStart)
		authGroup.GET("/:provider/callback", api.OAuthCallback)
	}
	authed.GET("/auth/me", api.Me)

	posts := apiGroup.Group("/posts")
	{
		posts.GET("", api.ListPosts)
		posts.GET("/published", api.PublishedPosts)
		posts.GET("/slug/:slug", api.GetPostBySlug)
		posts.GET("/author/:authorId", api.PostsByAuthor)
		posts.GET("/:id", api.GetPost)
		posts.GET("/:id/comments", api.ListComments)
		posts.GET("/:id/reactions", api.ReactionSummary)
	}
	authed.GET("/posts/drafts", api.DraftPosts)
	authed.POST("/posts", api.CreatePost)
	authed.PUT("/posts/:id", api.UpdatePost)
	authed.PATCH("/posts/:id", api.UpdatePost)
	authed.PATCH("/posts/:id/status", api.UpdatePostStatus)
	authed.PUT("/posts/:id/status", api.UpdatePostStatus)
	authed.DELETE("/posts/:id", api.DeletePost)
	authed.POST("/posts/:id/comments", api.CreateComment)
	authed.PUT("/posts/:id/reaction", api.React)
	authed.DELETE("/posts/:id/reaction", api.RemoveReaction)
	authed.DELETE("/comments/:id", api.DeleteComment)
	admin.GET("/posts/scheduled", api.ScheduledPosts)
	admin.POST("/posts/blog", api.CreateBlogPost)

	categories := apiGroup.Group("/categories")
	{
		categories.GET("", api.ListCategories)
		categories.GET("/active", api.ActiveCategories)
		categories.GET("/slug/:slug", api.GetCategoryBySlug)
		categories.GET("/:id", api.GetCategory)
		categories.GET("/:id/posts", api.CategoryPosts)
	}
	admin.POST("/categories", api.CreateCategory)
	admin.POST("/categories/find-or-create", api.FindOrCreateCategory)
	admin.PATCH("/categories/:id", api.UpdateCategory)
	admin.PUT("/categories/:id", api.UpdateCategory)
	admin.DELETE("/categories/:id", api.DeleteCategory)

	tags := apiGroup.Group("/tags")
	{
		tags.GET("", api.ListTags)
		tags.GET("/popular", api.PopularTags)
		tags.GET("/slug/:slug", api.GetTagBySlug)
		tags.GET("/:id", api.GetTag)
		tags.GET("/:id/posts", api.TagPosts)
	}
	admin.POST("/tags", api.CreateTag)
	admin.POST("/tags/find-or-create", api.FindOrCreateTag)
	admin.PATCH("/tags/:id", api.UpdateTag)
	admin.PUT("/tags/:id", api.UpdateTag)
	admin.DELETE("/tags/:id", api.DeleteTag)

	authed.POST("/media", api.UploadMedia)
	authed.GET("/media", api.ListMedia)
	authed.GET("/media/stats", api.MediaStats)
	authed.GET("/media/:id", api.GetMedia)
	authed.PATCH("/media/:id", api.UpdateMedia)
	authed.DELETE("/media/:id", api.DeleteMedia)

	admin.GET("/users/:id", api.GetUser)
	admin.PATCH("/users/:id/active", api.SetUserActive)

	return r
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c, true
}
