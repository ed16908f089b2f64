package main

import (
	"context"
	"errors"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/config"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/logging"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Fills an empty database with demo users, posts and taxonomy.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN()); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	summary, err := seed(context.Background(), db.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	if summary.Posts == 0 {
		log.Info().Msg("posts already exist, nothing seeded")
		return
	}
	log.Info().
		Int("users", summary.Users).
		Int("posts", summary.Posts).
		Int("categories", summary.Categories).
		Int("tags", summary.Tags).
		Msg("seed data created")
}

type seedSummary struct {
	Users      int
	Posts      int
	Categories int
	Tags       int
}

type seedUser struct {
	email    string
	name     string
	password string
	role     string
}

type seedPost struct {
	title    string
	content  string
	excerpt  string
	status   string
	category string
	tags     []string
	daysAgo  int
}

var seedUsers = []seedUser{
	{"admin@example.com", "Administrator", "admin12345", db.RoleAdmin},
	{"writer@example.com", "Test Writer", "writer12345", db.RoleUser},
}

var seedPosts = []seedPost{
	{
		title:    "Getting Started with Go",
		content:  "## Why Go\n\nGo keeps things **simple**: a small language, fast builds and a great standard library.",
		excerpt:  "A short tour of what makes Go pleasant to work with.",
		status:   "published",
		category: "Programming",
		tags:     []string{"Go", "Tutorial"},
		daysAgo:  10,
	},
	{
		title:    "Designing Slugs That Last",
		content:  "Slugs are part of your public API. Pick them once and keep them stable.",
		status:   "published",
		category: "Programming",
		tags:     []string{"Web", "Design"},
		daysAgo:  6,
	},
	{
		title:    "Weekend Hiking Notes",
		content:  "Three trails, two blisters and one very good sandwich.",
		status:   "published",
		category: "Life",
		tags:     []string{"Outdoors"},
		daysAgo:  3,
	},
	{
		title:    "Draft: Database Indexing",
		content:  "Notes on composite indexes, to be finished.",
		status:   "draft",
		category: "Programming",
		tags:     []string{"Database", "Go"},
	},
	{
		title:    "Old Announcement",
		content:  "This post is kept for reference but hidden from readers.",
		status:   "hidden",
		category: "News",
		tags:     []string{"Announcements"},
		daysAgo:  90,
	},
}

// seed creates users, taxonomy, posts and some engagement through the
// services. It does nothing when any post already exists.
func seed(ctx context.Context, gdb *gorm.DB) (seedSummary, error) {
	var summary seedSummary

	var existing int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Count(&existing).Error; err != nil {
		return summary, err
	}
	if existing > 0 {
		return summary, nil
	}

	users := service.NewUserService(gdb)
	principals := make([]auth.Principal, 0, len(seedUsers))
	for _, u := range seedUsers {
		user, err := users.Create(ctx, service.UserInput{Email: u.email, Name: u.name, Password: u.password, Role: u.role})
		switch {
		case err == nil:
			summary.Users++
		case errors.Is(err, service.ErrUserExists):
			if user, err = users.FindByEmail(ctx, u.email); err != nil {
				return summary, err
			}
		default:
			return summary, err
		}
		principals = append(principals, auth.Principal{ID: user.ID, Email: user.Email, Name: user.Name, Role: auth.Role(user.Role)})
	}
	admin, writer := principals[0], principals[1]

	posts := service.NewPostService(gdb, nil, nil)
	now := time.Now().UTC()
	var first string
	for i, p := range seedPosts {
		author := admin
		if i%2 == 1 {
			author = writer
		}
		var publishDate *time.Time
		if p.status == "published" {
			at := now.AddDate(0, 0, -p.daysAgo)
			publishDate = &at
		}
		result, err := posts.CreateBlogPost(ctx, service.BlogPostInput{
			Title:       p.title,
			Content:     p.content,
			Description: p.excerpt,
			Status:      p.status,
			Category:    p.category,
			Tags:        p.tags,
			PublishDate: publishDate,
		}, author)
		if err != nil {
			return summary, err
		}
		if first == "" {
			first = result.Post.ID
		}
		summary.Posts++
		summary.Categories += len(result.CreatedCategories)
		summary.Tags += len(result.CreatedTags)
	}

	comments := service.NewCommentService(gdb)
	comment, err := comments.Create(ctx, first, service.CommentInput{Content: "Great introduction, thanks!"}, writer)
	if err != nil {
		return summary, err
	}
	if _, err := comments.Create(ctx, first, service.CommentInput{Content: "Glad it helped.", ParentID: &comment.ID}, admin); err != nil {
		return summary, err
	}
	if _, err := service.NewReactionService(gdb).React(ctx, first, "like", writer); err != nil {
		return summary, err
	}
	return summary, nil
}
