package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/render"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq struct {
	sync.Mutex
	n int
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq.Lock()
	testDBSeq.n++
	dsn := fmt.Sprintf("file:service-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.n)
	testDBSeq.Unlock()

	gdb, err := db.Open("sqlite", dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, email, role string) auth.Principal {
	t.Helper()
	user := db.User{Email: email, Name: email, Role: role, IsActive: true}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return auth.Principal{ID: user.ID, Email: user.Email, Name: user.Name, Role: auth.Role(role)}
}

func newTestPostService(gdb *gorm.DB) *PostService {
	return NewPostService(gdb, NewRecounter(gdb, nil), render.New())
}

func mustCreatePost(t *testing.T, svc *PostService, input PostInput, author auth.Principal) *db.Post {
	t.Helper()
	if input.Content == "" {
		input.Content = "Body of " + input.Title
	}
	result, err := svc.Create(context.Background(), input, author)
	if err != nil {
		t.Fatalf("create post %q: %v", input.Title, err)
	}
	return result.Post
}

func mustCreateTag(t *testing.T, gdb *gorm.DB, name string) db.Tag {
	t.Helper()
	tag, _, err := NewTagService(gdb).FindOrCreate(context.Background(), name)
	if err != nil {
		t.Fatalf("create tag %s: %v", name, err)
	}
	return *tag
}

func mustCreateCategory(t *testing.T, gdb *gorm.DB, name string) db.Category {
	t.Helper()
	category, _, err := NewCategoryService(gdb).FindOrCreate(context.Background(), name)
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return *category
}

func postCountOf(t *testing.T, gdb *gorm.DB, table, id string) int64 {
	t.Helper()
	var count int64
	if err := gdb.Table(table).Where("id = ?", id).Select("post_count").Scan(&count).Error; err != nil {
		t.Fatalf("read post_count of %s %s: %v", table, id, err)
	}
	return count
}

// assertCountersMatchRelations compares every stored post_count with the
// number of join rows.
func assertCountersMatchRelations(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	for _, kind := range []taxonomyKind{categoryKind, tagKind} {
		var rows []struct {
			ID        string
			PostCount int64
			Actual    int64
		}
		err := gdb.Table(kind.table).
			Select(fmt.Sprintf("id, post_count, %s AS actual", kind.countExpr())).
			Scan(&rows).Error
		if err != nil {
			t.Fatalf("scan %s counters: %v", kind.table, err)
		}
		for _, row := range rows {
			if row.PostCount != row.Actual {
				t.Fatalf("%s %s: post_count %d, related posts %d", kind.name, row.ID, row.PostCount, row.Actual)
			}
		}
	}
}

func TestPostService_CreateResolvesUniqueSlugs(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)

	first := mustCreatePost(t, svc, PostInput{Title: "Hello, World!"}, author)
	second := mustCreatePost(t, svc, PostInput{Title: "Hello, World!"}, author)
	explicit := mustCreatePost(t, svc, PostInput{Title: "Other", Slug: "Hello World"}, author)
	empty := mustCreatePost(t, svc, PostInput{Title: "!!!"}, author)

	if first.Slug != "hello-world" {
		t.Fatalf("expected hello-world, got %q", first.Slug)
	}
	if second.Slug != "hello-world-2" {
		t.Fatalf("expected hello-world-2, got %q", second.Slug)
	}
	if explicit.Slug != "hello-world-3" {
		t.Fatalf("expected explicit slug to be disambiguated, got %q", explicit.Slug)
	}
	if empty.Slug != "post" {
		t.Fatalf("expected fallback slug, got %q", empty.Slug)
	}
	if first.Author.ID != author.ID || first.Author.Email != author.Email {
		t.Fatalf("expected author to be preloaded, got %+v", first.Author)
	}
	if first.Status != db.PostStatusDraft || first.Type != db.PostTypeArticle || first.PublishedAt != nil {
		t.Fatalf("unexpected defaults: status=%q type=%q publishedAt=%v", first.Status, first.Type, first.PublishedAt)
	}
	if first.Excerpt != "Body of Hello, World!" {
		t.Fatalf("expected derived excerpt, got %q", first.Excerpt)
	}
}

func TestPostService_CreateValidatesInput(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	cases := []struct {
		name  string
		input PostInput
		field string
	}{
		{"blank title", PostInput{Title: "  ", Content: "x"}, "title"},
		{"blank content", PostInput{Title: "T", Content: " \n"}, "content"},
		{"unknown status", PostInput{Title: "T", Content: "x", Status: "archived"}, "status"},
		{"unknown type", PostInput{Title: "T", Content: "x", Type: "video"}, "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input, author)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected errors.Is(ErrValidation)")
			}
		})
	}

	if _, err := svc.Create(ctx, PostInput{Title: "T", Content: "x"}, auth.Principal{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected anonymous create to be forbidden, got %v", err)
	}

	var count int64
	gdb.Model(&db.Post{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no posts, got %d", count)
	}
}

func TestPostService_CreateRejectsUnknownTaxonomyIDs(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	tag := mustCreateTag(t, gdb, "Go")

	_, err := svc.Create(context.Background(), PostInput{
		Title:         "Orphan",
		Content:       "x",
		TagIDs:        []string{tag.ID, "missing"},
		CategoryNames: []string{"Should Roll Back"},
	}, author)
	if !errors.Is(err, ErrTagNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}

	_, err = svc.Create(context.Background(), PostInput{Title: "Orphan", Content: "x", CategoryIDs: []string{"missing"}}, author)
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	var posts, categories int64
	gdb.Model(&db.Post{}).Count(&posts)
	gdb.Model(&db.Category{}).Count(&categories)
	if posts != 0 || categories != 0 {
		t.Fatalf("expected nothing persisted, got %d posts and %d categories", posts, categories)
	}
}

func TestPostService_CreateBlogPostCreatesTaxonomyByName(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	publishDate := time.Date(2025, 12, 24, 8, 0, 0, 0, time.UTC)

	result, err := svc.CreateBlogPost(ctx, BlogPostInput{
		Title:       "Đà Lạt in winter",
		Content:     "Pine trees and fog.",
		Description: "A short trip",
		Thumbnail:   "https://cdn.example.com/dalat.jpg",
		Status:      "published",
		Category:    "Travel Notes",
		Tags:        []string{"Vietnam", "Winter", "Vietnam"},
		PublishDate: &publishDate,
	}, author)
	if err != nil {
		t.Fatalf("create blog post: %v", err)
	}

	post := result.Post
	if post.Slug != "da-lat-in-winter" || post.Excerpt != "A short trip" {
		t.Fatalf("unexpected post: slug=%q excerpt=%q", post.Slug, post.Excerpt)
	}
	if post.PublishedAt == nil || !post.PublishedAt.Equal(publishDate) {
		t.Fatalf("expected explicit publish date, got %v", post.PublishedAt)
	}
	if len(result.CreatedCategories) != 1 || result.CreatedCategories[0].Name != "Travel Notes" {
		t.Fatalf("expected created category to be reported, got %+v", result.CreatedCategories)
	}
	if len(result.CreatedTags) != 2 {
		t.Fatalf("expected two created tags, got %+v", result.CreatedTags)
	}
	if len(post.Categories) != 1 || post.Categories[0].PostCount != 1 {
		t.Fatalf("expected category with postCount 1, got %+v", post.Categories)
	}
	category := post.Categories[0]
	if category.Slug != "travel-notes" || category.Status != db.CategoryStatusActive || category.Description != "Category for Travel Notes" {
		t.Fatalf("unexpected category defaults: %+v", category)
	}

	again, err := svc.CreateBlogPost(ctx, BlogPostInput{
		Title:    "Hà Nội",
		Content:  "Old quarter.",
		Category: "travel-notes",
		Tags:     []string{"Vietnam"},
	}, author)
	if err != nil {
		t.Fatalf("create second blog post: %v", err)
	}
	if len(again.CreatedCategories) != 0 || len(again.CreatedTags) != 0 {
		t.Fatalf("expected existing taxonomy to be reused, got %+v %+v", again.CreatedCategories, again.CreatedTags)
	}
	if got := postCountOf(t, gdb, "categories", category.ID); got != 2 {
		t.Fatalf("expected category postCount 2, got %d", got)
	}
	assertCountersMatchRelations(t, gdb)
}

func TestPostService_PublishedAtIsSetOnce(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	post := mustCreatePost(t, svc, PostInput{Title: "Lifecycle"}, author)

	published, err := svc.UpdateStatus(ctx, post.ID, "published", author)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.PublishedAt == nil || !published.PublishedAt.Equal(clock) {
		t.Fatalf("expected publishedAt %v, got %v", clock, published.PublishedAt)
	}
	first := *published.PublishedAt

	clock = clock.Add(time.Hour)
	draft, err := svc.UpdateStatus(ctx, post.ID, "draft", author)
	if err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if draft.Status != db.PostStatusDraft || draft.PublishedAt == nil || !draft.PublishedAt.Equal(first) {
		t.Fatalf("expected publishedAt to survive unpublish, got %+v", draft.PublishedAt)
	}

	clock = clock.Add(time.Hour)
	hidden, err := svc.Update(ctx, post.ID, PostPatch{Status: ptr("hidden")}, author)
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	clock = clock.Add(time.Hour)
	again, err := svc.Update(ctx, post.ID, PostPatch{Status: ptr("published")}, author)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if hidden.Post.PublishedAt == nil || !again.Post.PublishedAt.Equal(first) {
		t.Fatalf("expected publishedAt %v after republish, got %v", first, again.Post.PublishedAt)
	}

	if _, err := svc.UpdateStatus(ctx, post.ID, "gone", author); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestPostService_RemoveRecountsTags(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	tag := mustCreateTag(t, gdb, "Shared")

	p1 := mustCreatePost(t, svc, PostInput{Title: "P1", TagIDs: []string{tag.ID}}, author)
	mustCreatePost(t, svc, PostInput{Title: "P2", TagIDs: []string{tag.ID}}, author)
	if got := postCountOf(t, gdb, "tags", tag.ID); got != 2 {
		t.Fatalf("expected postCount 2, got %d", got)
	}

	reader := createTestUser(t, gdb, "reader@example.com", db.RoleUser)
	if err := gdb.Create(&db.Comment{Content: "nice", PostID: p1.ID, AuthorID: reader.ID}).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := svc.Remove(ctx, p1.ID, author); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := postCountOf(t, gdb, "tags", tag.ID); got != 1 {
		t.Fatalf("expected postCount 1 after delete, got %d", got)
	}
	if _, err := svc.Get(ctx, p1.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected removed post to be gone, got %v", err)
	}
	var comments int64
	gdb.Model(&db.Comment{}).Where("post_id = ?", p1.ID).Count(&comments)
	if comments != 0 {
		t.Fatalf("expected comments to be removed, got %d", comments)
	}
	if err := svc.Remove(ctx, p1.ID, author); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound on second remove, got %v", err)
	}
	assertCountersMatchRelations(t, gdb)
}

func TestPostService_ConcurrentCreatesGetDistinctSlugs(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), PostInput{Title: "Launch", Content: "go"}, author)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	var slugs []string
	gdb.Model(&db.Post{}).Order("slug asc").Pluck("slug", &slugs)
	if len(slugs) != 2 || slugs[0] != "launch" || slugs[1] != "launch-2" {
		t.Fatalf("expected [launch launch-2], got %v", slugs)
	}
}

// stealSlugOnCreate makes the next `times` post inserts collide with taken,
// the way a concurrent writer would after the pre-check.
func stealSlugOnCreate(t *testing.T, gdb *gorm.DB, taken string, times int) *int {
	t.Helper()
	attempts := 0
	err := gdb.Callback().Create().Before("gorm:create").Register("test:steal_slug", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "posts" {
			return
		}
		attempts++
		if attempts <= times {
			tx.Statement.SetColumn("Slug", taken)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return &attempts
}

func TestPostService_SlugConflictIsRetriedOnce(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	mustCreatePost(t, svc, PostInput{Title: "Taken"}, author)

	attempts := stealSlugOnCreate(t, gdb, "taken", 1)

	result, err := svc.Create(context.Background(), PostInput{Title: "Launch", Content: "x", TagNames: []string{"Retry"}}, author)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Post.Slug != "launch" {
		t.Fatalf("expected slug launch after retry, got %q", result.Post.Slug)
	}
	if *attempts != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", *attempts)
	}
	if len(result.CreatedTags) != 1 {
		t.Fatalf("expected created tags from the successful attempt only, got %+v", result.CreatedTags)
	}
	var tags int64
	gdb.Model(&db.Tag{}).Where("name = ?", "Retry").Count(&tags)
	if tags != 1 {
		t.Fatalf("expected one Retry tag, got %d", tags)
	}
}

func TestPostService_SlugConflictSurfacesAfterRetry(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	mustCreatePost(t, svc, PostInput{Title: "Taken"}, author)

	attempts := stealSlugOnCreate(t, gdb, "taken", 10)

	_, err := svc.Create(context.Background(), PostInput{Title: "Launch", Content: "x"}, author)
	if !errors.Is(err, ErrSlugConflict) {
		t.Fatalf("expected ErrSlugConflict, got %v", err)
	}
	if *attempts != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", *attempts)
	}
}

func TestPostService_UpdateRelationSets(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	news := mustCreateCategory(t, gdb, "News")
	guides := mustCreateCategory(t, gdb, "Guides")
	goTag := mustCreateTag(t, gdb, "Go")
	sqlTag := mustCreateTag(t, gdb, "SQL")

	post := mustCreatePost(t, svc, PostInput{
		Title:       "Relations",
		CategoryIDs: []string{news.ID},
		TagIDs:      []string{goTag.ID, sqlTag.ID},
	}, author)

	t.Run("omitted sets are kept", func(t *testing.T) {
		result, err := svc.Update(ctx, post.ID, PostPatch{Excerpt: ptr("new excerpt")}, author)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(result.Post.Categories) != 1 || len(result.Post.Tags) != 2 {
			t.Fatalf("expected relations unchanged, got %d categories %d tags", len(result.Post.Categories), len(result.Post.Tags))
		}
	})

	t.Run("replacing recounts old and new", func(t *testing.T) {
		result, err := svc.Update(ctx, post.ID, PostPatch{CategoryIDs: []string{guides.ID}}, author)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(result.Post.Categories) != 1 || result.Post.Categories[0].ID != guides.ID {
			t.Fatalf("expected guides only, got %+v", result.Post.Categories)
		}
		if postCountOf(t, gdb, "categories", news.ID) != 0 || postCountOf(t, gdb, "categories", guides.ID) != 1 {
			t.Fatalf("expected news=0 guides=1")
		}
	})

	t.Run("explicit empty set clears", func(t *testing.T) {
		result, err := svc.Update(ctx, post.ID, PostPatch{TagIDs: []string{}}, author)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(result.Post.Tags) != 0 {
			t.Fatalf("expected tags cleared, got %+v", result.Post.Tags)
		}
		if len(result.Post.Categories) != 1 {
			t.Fatalf("expected categories untouched, got %+v", result.Post.Categories)
		}
		if postCountOf(t, gdb, "tags", goTag.ID) != 0 || postCountOf(t, gdb, "tags", sqlTag.ID) != 0 {
			t.Fatalf("expected tag counts to drop to zero")
		}
	})

	t.Run("names are merged with ids", func(t *testing.T) {
		result, err := svc.Update(ctx, post.ID, PostPatch{TagIDs: []string{goTag.ID}, TagNames: []string{"go", "Databases"}}, author)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(result.Post.Tags) != 2 || len(result.CreatedTags) != 1 || result.CreatedTags[0].Name != "Databases" {
			t.Fatalf("unexpected tags: %+v created=%+v", result.Post.Tags, result.CreatedTags)
		}
	})

	t.Run("unknown id fails without writing", func(t *testing.T) {
		_, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Renamed"), CategoryIDs: []string{"missing"}}, author)
		if !errors.Is(err, ErrCategoryNotFound) {
			t.Fatalf("expected ErrCategoryNotFound, got %v", err)
		}
		current, _ := svc.Get(ctx, post.ID)
		if current.Title != "Relations" {
			t.Fatalf("expected title unchanged, got %q", current.Title)
		}
	})

	assertCountersMatchRelations(t, gdb)
}

func TestPostService_UpdateSlugRules(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	mustCreatePost(t, svc, PostInput{Title: "Second Title"}, author)
	post := mustCreatePost(t, svc, PostInput{Title: "First Title"}, author)

	kept, err := svc.Update(ctx, post.ID, PostPatch{Content: ptr("changed body")}, author)
	if err != nil || kept.Post.Slug != "first-title" {
		t.Fatalf("expected slug kept, got %q (%v)", kept.Post.Slug, err)
	}

	sameTitle, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("First Title")}, author)
	if err != nil || sameTitle.Post.Slug != "first-title" {
		t.Fatalf("expected unchanged title to keep slug, got %q (%v)", sameTitle.Post.Slug, err)
	}

	renamed, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Second Title")}, author)
	if err != nil || renamed.Post.Slug != "second-title-2" {
		t.Fatalf("expected second-title-2, got %q (%v)", renamed.Post.Slug, err)
	}

	explicit, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Third"), Slug: ptr("Custom Slug")}, author)
	if err != nil || explicit.Post.Slug != "custom-slug" {
		t.Fatalf("expected explicit slug, got %q (%v)", explicit.Post.Slug, err)
	}

	self, err := svc.Update(ctx, post.ID, PostPatch{Slug: ptr("custom-slug")}, author)
	if err != nil || self.Post.Slug != "custom-slug" {
		t.Fatalf("re-submitting own slug must not disambiguate, got %q (%v)", self.Post.Slug, err)
	}

	clash, err := svc.Update(ctx, post.ID, PostPatch{Slug: ptr("second-title")}, author)
	if err != nil || clash.Post.Slug != "second-title-2" {
		t.Fatalf("expected explicit slug to be re-validated, got %q (%v)", clash.Post.Slug, err)
	}
}

func TestPostService_NonAuthorCannotMutate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	stranger := createTestUser(t, gdb, "stranger@example.com", db.RoleUser)
	admin := createTestUser(t, gdb, "admin@example.com", db.RoleAdmin)
	ctx := context.Background()
	tag := mustCreateTag(t, gdb, "Guarded")

	post := mustCreatePost(t, svc, PostInput{Title: "Mine", TagIDs: []string{tag.ID}}, author)
	before, _ := svc.Get(ctx, post.ID)

	if _, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Hijacked"), TagIDs: []string{}}, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on update, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, post.ID, "published", stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on status, got %v", err)
	}
	if err := svc.Remove(ctx, post.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on remove, got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", PostPatch{}, stranger); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected not found to win over forbidden for missing posts, got %v", err)
	}

	after, err := svc.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Title != before.Title || after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) || len(after.Tags) != 1 {
		t.Fatalf("forbidden calls changed state: before=%+v after=%+v", before, after)
	}
	if postCountOf(t, gdb, "tags", tag.ID) != 1 {
		t.Fatalf("forbidden calls changed counters")
	}

	result, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Moderated")}, admin)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if result.Post.AuthorID != author.ID || result.Post.Author.ID != author.ID {
		t.Fatalf("author must not change on admin edit, got %q", result.Post.AuthorID)
	}
	if err := svc.Remove(ctx, post.ID, admin); err != nil {
		t.Fatalf("admin remove: %v", err)
	}
}

func TestPostService_WritesLockThePostRow(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	post := mustCreatePost(t, svc, PostInput{Title: "Locked"}, author)

	var mu sync.Mutex
	var locked []string
	err := gdb.Callback().Query().Before("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok {
			mu.Lock()
			locked = append(locked, tx.Statement.Table)
			mu.Unlock()
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Still Locked")}, author); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, post.ID, "published", author); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := svc.Remove(ctx, post.ID, author); err != nil {
		t.Fatalf("remove: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(locked) < 3 {
		t.Fatalf("expected a locking read per write, got %v", locked)
	}
	for _, table := range locked {
		if table != "posts" {
			t.Fatalf("unexpected locked table %q", table)
		}
	}
}

func TestPostService_ScheduledAtChangesOnlyWhenAssigned(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	when := time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)

	post := mustCreatePost(t, svc, PostInput{Title: "Later", ScheduledAt: &when}, author)

	result, err := svc.Update(ctx, post.ID, PostPatch{Status: ptr("hidden")}, author)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if result.Post.ScheduledAt == nil || !result.Post.ScheduledAt.Equal(when) {
		t.Fatalf("status change must keep scheduledAt, got %v", result.Post.ScheduledAt)
	}

	cleared, err := svc.Update(ctx, post.ID, PostPatch{ScheduledAt: OptionalTime{Set: true}}, author)
	if err != nil {
		t.Fatalf("clear scheduledAt: %v", err)
	}
	if cleared.Post.ScheduledAt != nil {
		t.Fatalf("expected scheduledAt cleared, got %v", cleared.Post.ScheduledAt)
	}
}

func TestPostService_FindOneCountsEveryView(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	post := mustCreatePost(t, svc, PostInput{Title: "Popular"}, author)

	viewed, err := svc.FindOne(ctx, post.ID)
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if viewed.ViewCount != 1 {
		t.Fatalf("expected returned view to include the increment, got %d", viewed.ViewCount)
	}

	const readers = 20
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				svc.FindOne(ctx, post.ID)
			} else {
				svc.FindBySlug(ctx, "popular")
			}
		}(i)
	}
	wg.Wait()

	stored, err := svc.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ViewCount != readers+1 {
		t.Fatalf("expected %d views, got %d", readers+1, stored.ViewCount)
	}

	if _, err := svc.FindBySlug(ctx, "nope"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestPostService_UpdateDoesNotClobberViewCount(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()
	post := mustCreatePost(t, svc, PostInput{Title: "Counted"}, author)

	svc.FindOne(ctx, post.ID)
	svc.FindOne(ctx, post.ID)
	if _, err := svc.Update(ctx, post.ID, PostPatch{Title: ptr("Counted Again")}, author); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := svc.Get(ctx, post.ID)
	if stored.ViewCount != 2 {
		t.Fatalf("expected view count 2 after update, got %d", stored.ViewCount)
	}
}

func TestPostService_ListFiltersAndPaginates(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	alice := createTestUser(t, gdb, "alice@example.com", db.RoleUser)
	bob := createTestUser(t, gdb, "bob@example.com", db.RoleUser)
	ctx := context.Background()

	cat := mustCreateCategory(t, gdb, "Databases")
	tag := mustCreateTag(t, gdb, "Postgres")

	mustCreatePost(t, svc, PostInput{Title: "Indexing 101", Content: "B-trees", Status: "published", CategoryIDs: []string{cat.ID}}, alice)
	mustCreatePost(t, svc, PostInput{Title: "Vacuum", Content: "Dead tuples and POSTGRES internals", TagIDs: []string{tag.ID}}, alice)
	mustCreatePost(t, svc, PostInput{Title: "Gardening", Content: "Tomatoes", Excerpt: "all about 100% organic_soil"}, bob)
	for i := 0; i < 12; i++ {
		mustCreatePost(t, svc, PostInput{Title: fmt.Sprintf("Filler %02d", i)}, bob)
	}

	cases := []struct {
		name   string
		filter PostFilter
		total  int64
	}{
		{"all", PostFilter{}, 15},
		{"status", PostFilter{Status: "published"}, 1},
		{"category", PostFilter{CategoryID: cat.ID}, 1},
		{"tag", PostFilter{TagID: tag.ID}, 1},
		{"author", PostFilter{AuthorID: alice.ID}, 2},
		{"search is case-insensitive", PostFilter{Search: "postgres"}, 1},
		{"search covers excerpt", PostFilter{Search: "ORGANIC"}, 1},
		{"percent is literal", PostFilter{Search: "100%"}, 1},
		{"underscore is literal", PostFilter{Search: "c_s"}, 1},
		{"combined", PostFilter{AuthorID: bob.ID, Search: "filler 1"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if result.Total != tc.total {
				t.Fatalf("expected total %d, got %d", tc.total, result.Total)
			}
		})
	}

	page, err := svc.List(ctx, PostFilter{Page: 2, Limit: 10, SortBy: "title", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page.Total != 15 || page.TotalPages != 2 || len(page.Items) != 5 || page.Page != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	titles := make([]string, 0, len(page.Items))
	for _, p := range page.Items {
		titles = append(titles, p.Title)
	}
	if !sort.StringsAreSorted(titles) {
		t.Fatalf("expected ascending titles, got %v", titles)
	}

	defaults, err := svc.List(ctx, PostFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if defaults.Limit != maxPageSize || defaults.Page != 1 {
		t.Fatalf("expected capped limit and first page, got limit=%d page=%d", defaults.Limit, defaults.Page)
	}

	for _, bad := range []PostFilter{{SortBy: "password"}, {SortOrder: "sideways"}, {Status: "archived"}} {
		if _, err := svc.List(ctx, bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", bad, err)
		}
	}
}

func TestPostService_StatusViews(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	alice := createTestUser(t, gdb, "alice@example.com", db.RoleUser)
	bob := createTestUser(t, gdb, "bob@example.com", db.RoleUser)
	ctx := context.Background()

	soon := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	later := soon.Add(48 * time.Hour)
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreatePost(t, svc, PostInput{Title: "Later", ScheduledAt: &later}, alice)
	mustCreatePost(t, svc, PostInput{Title: "Soon", ScheduledAt: &soon}, alice)
	mustCreatePost(t, svc, PostInput{Title: "Plain draft"}, bob)
	mustCreatePost(t, svc, PostInput{Title: "Old news", Status: "published", PublishedAt: &early}, bob)
	mustCreatePost(t, svc, PostInput{Title: "Fresh news", Status: "published"}, alice)
	mustCreatePost(t, svc, PostInput{Title: "Published with schedule", Status: "published", ScheduledAt: &soon}, alice)

	scheduled, err := svc.Scheduled(ctx)
	if err != nil {
		t.Fatalf("scheduled: %v", err)
	}
	if len(scheduled) != 2 || scheduled[0].Title != "Soon" || scheduled[1].Title != "Later" {
		t.Fatalf("expected [Soon Later], got %v", postTitles(scheduled))
	}

	published, err := svc.Published(ctx)
	if err != nil {
		t.Fatalf("published: %v", err)
	}
	if len(published) != 3 || published[len(published)-1].Title != "Old news" {
		t.Fatalf("expected old news last, got %v", postTitles(published))
	}

	drafts, err := svc.Drafts(ctx, bob.ID)
	if err != nil {
		t.Fatalf("drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Title != "Plain draft" {
		t.Fatalf("expected bob's draft, got %v", postTitles(drafts))
	}

	mine, err := svc.ByAuthor(ctx, alice.ID)
	if err != nil {
		t.Fatalf("by author: %v", err)
	}
	if len(mine) != 4 {
		t.Fatalf("expected 4 posts by alice, got %v", postTitles(mine))
	}
}

func TestPostService_CountersSurviveMixedOperations(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	tags := []db.Tag{mustCreateTag(t, gdb, "a"), mustCreateTag(t, gdb, "b"), mustCreateTag(t, gdb, "c")}
	cats := []db.Category{mustCreateCategory(t, gdb, "x"), mustCreateCategory(t, gdb, "y")}

	var ids []string
	for i := 0; i < 6; i++ {
		p := mustCreatePost(t, svc, PostInput{
			Title:       fmt.Sprintf("Post %d", i),
			TagIDs:      []string{tags[i%3].ID, tags[(i+1)%3].ID},
			CategoryIDs: []string{cats[i%2].ID},
		}, author)
		ids = append(ids, p.ID)
	}
	assertCountersMatchRelations(t, gdb)

	if _, err := svc.Update(ctx, ids[0], PostPatch{TagIDs: []string{tags[2].ID}, CategoryIDs: []string{}}, author); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Remove(ctx, ids[1], author); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.Update(ctx, ids[2], PostPatch{CategoryNames: []string{"z"}}, author); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := NewTagService(gdb).Delete(ctx, tags[0].ID, auth.Principal{ID: "root", Role: auth.RoleAdmin}); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
	assertCountersMatchRelations(t, gdb)
}

func postTitles(posts []db.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
