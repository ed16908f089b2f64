package service

import (
	"context"
	"errors"
	"testing"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
)

func TestCategoryServiceFindOrCreateLookupOrder(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	custom, err := svc.Create(ctx, CategoryInput{Name: "Travel Notes", Slug: "trips"}, testAdmin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, key := range []string{custom.ID, "trips", "Travel Notes"} {
		found, created, err := svc.FindOrCreate(ctx, key)
		if err != nil {
			t.Fatalf("find %q: %v", key, err)
		}
		if created || found.ID != custom.ID {
			t.Fatalf("expected %q to resolve to the existing category", key)
		}
	}

	fresh, created, err := svc.FindOrCreate(ctx, "Travel")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if !created || fresh.Slug != "travel" || fresh.Description != "Category for Travel" || fresh.Status != db.CategoryStatusActive {
		t.Fatalf("unexpected new category: created=%v %+v", created, fresh)
	}

	symbols, created, err := svc.FindOrCreate(ctx, "???")
	if err != nil || !created || symbols.Slug != "untitled" {
		t.Fatalf("expected fallback slug, got %+v (%v)", symbols, err)
	}
}

func TestCategoryServiceFindOrCreateKeepsNamesSharingASlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	c, _, err := svc.FindOrCreate(ctx, "C")
	if err != nil {
		t.Fatalf("create C: %v", err)
	}
	cpp, created, err := svc.FindOrCreate(ctx, "C++")
	if err != nil {
		t.Fatalf("create C++: %v", err)
	}
	if !created || cpp.ID == c.ID || c.Slug != "c" || cpp.Slug != "c-2" {
		t.Fatalf("expected distinct categories, got %+v and %+v", c, cpp)
	}
}

func TestCategoryServiceCreateValidates(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CategoryInput{Name: "News"}, auth.Principal{ID: "u", Role: auth.RoleUser}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Create(ctx, CategoryInput{Name: " "}, testAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Create(ctx, CategoryInput{Name: "News", Status: "archived"}, testAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.Create(ctx, CategoryInput{Name: "News"}, testAdmin); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, CategoryInput{Name: "News"}, testAdmin); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
}

func TestCategoryServiceUpdate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	parent, _ := svc.Create(ctx, CategoryInput{Name: "Tech"}, testAdmin)
	child, _ := svc.Create(ctx, CategoryInput{Name: "Backend"}, testAdmin)

	updated, err := svc.Update(ctx, child.ID, CategoryPatch{
		Name:      ptr("Server Side"),
		ParentID:  ptr(parent.ID),
		SortOrder: ptr(3),
		Status:    ptr("inactive"),
	}, testAdmin)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Slug != "server-side" || updated.ParentID == nil || *updated.ParentID != parent.ID ||
		updated.SortOrder != 3 || updated.Status != db.CategoryStatusInactive {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if _, err := svc.Update(ctx, child.ID, CategoryPatch{ParentID: ptr(child.ID)}, testAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected self-parent to be rejected, got %v", err)
	}
	if _, err := svc.Update(ctx, child.ID, CategoryPatch{Name: ptr("Tech")}, testAdmin); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected name clash, got %v", err)
	}

	cleared, err := svc.Update(ctx, child.ID, CategoryPatch{ParentID: ptr("")}, testAdmin)
	if err != nil || cleared.ParentID != nil {
		t.Fatalf("expected parent cleared, got %+v (%v)", cleared, err)
	}
}

func TestCategoryServiceDeleteDetachesPostsAndChildren(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	posts := newTestPostService(gdb)
	author := createTestUser(t, gdb, "author@example.com", db.RoleUser)
	ctx := context.Background()

	parent, _ := svc.Create(ctx, CategoryInput{Name: "Parent"}, testAdmin)
	child, _ := svc.Create(ctx, CategoryInput{Name: "Child", ParentID: &parent.ID}, testAdmin)
	post := mustCreatePost(t, posts, PostInput{Title: "Filed", CategoryIDs: []string{parent.ID}}, author)

	if err := svc.Delete(ctx, parent.ID, testAdmin); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reloaded, err := posts.Get(ctx, post.ID)
	if err != nil || len(reloaded.Categories) != 0 {
		t.Fatalf("expected post kept without category, got %+v (%v)", reloaded, err)
	}
	orphan, err := svc.Get(ctx, child.ID)
	if err != nil || orphan.ParentID != nil {
		t.Fatalf("expected child parent cleared, got %+v (%v)", orphan, err)
	}
	if _, err := svc.Get(ctx, parent.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCategoryServiceListAndActive(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	svc.Create(ctx, CategoryInput{Name: "Zeta", SortOrder: 1}, testAdmin)
	svc.Create(ctx, CategoryInput{Name: "Alpha", SortOrder: 2}, testAdmin)
	svc.Create(ctx, CategoryInput{Name: "Beta", SortOrder: 1}, testAdmin)
	svc.Create(ctx, CategoryInput{Name: "Retired", Status: "inactive"}, testAdmin)

	active, err := svc.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	names := make([]string, 0, len(active))
	for _, c := range active {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[0] != "Beta" || names[1] != "Zeta" || names[2] != "Alpha" {
		t.Fatalf("unexpected active order: %v", names)
	}

	page, err := svc.List(ctx, TaxonomyFilter{Status: "inactive"})
	if err != nil || page.Total != 1 || page.Items[0].Name != "Retired" {
		t.Fatalf("unexpected inactive list: %+v (%v)", page, err)
	}

	paged, err := svc.List(ctx, TaxonomyFilter{Page: 2, Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if paged.Total != 4 || paged.TotalPages != 2 || len(paged.Items) != 1 {
		t.Fatalf("unexpected page: %+v", paged)
	}
}
