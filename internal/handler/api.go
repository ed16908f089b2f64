package handler

import (
	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/render"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
)

// Services lists the collaborators the HTTP layer calls into.
type Services struct {
	Posts      *service.PostService
	Categories *service.CategoryService
	Tags       *service.TagService
	Comments   *service.CommentService
	Reactions  *service.ReactionService
	Media      *service.MediaService
	Users      *service.UserService
	Auth       *service.AuthService
	Renderer   *render.Renderer
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	posts      *service.PostService
	categories *service.CategoryService
	tags       *service.TagService
	comments   *service.CommentService
	reactions  *service.ReactionService
	media      *service.MediaService
	users      *service.UserService
	auth       *service.AuthService
	renderer   *render.Renderer
	providers  auth.Providers
}

// NewAPI constructs a handler set with shared services.
func NewAPI(s Services, providers auth.Providers) *API {
	if providers == nil {
		providers = auth.NewProviders()
	}
	renderer := s.Renderer
	if renderer == nil {
		renderer = render.New()
	}
	return &API{
		posts:      s.Posts,
		categories: s.Categories,
		tags:       s.Tags,
		comments:   s.Comments,
		reactions:  s.Reactions,
		media:      s.Media,
		users:      s.Users,
		auth:       s.Auth,
		renderer:   renderer,
		providers:  providers,
	}
}
