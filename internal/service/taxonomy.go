package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MiddyPham/middy-corner-back-end/internal/slug"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// taxonomyKind describes where a taxonomy entity and its post relation live.
type taxonomyKind struct {
	name      string
	table     string
	joinTable string
	joinKey   string
}

var (
	categoryKind = taxonomyKind{name: "category", table: "categories", joinTable: "post_categories", joinKey: "category_id"}
	tagKind      = taxonomyKind{name: "tag", table: "tags", joinTable: "post_tags", joinKey: "tag_id"}
)

// countExpr is the correlated subquery that defines post_count.
func (k taxonomyKind) countExpr() string {
	return fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s.%s = %s.id)", k.joinTable, k.joinTable, k.joinKey, k.table)
}

// recount rewrites post_count for ids from the join table in one statement.
func recount(conn *gorm.DB, kind taxonomyKind, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	err := conn.Table(kind.table).
		Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr(kind.countExpr())).Error
	if err != nil {
		return fmt.Errorf("recount %s: %w", kind.table, err)
	}
	return nil
}

func recountAll(conn *gorm.DB, kind taxonomyKind) error {
	err := conn.Table(kind.table).
		Where("1 = 1").
		UpdateColumn("post_count", gorm.Expr(kind.countExpr())).Error
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", kind.table, err)
	}
	return nil
}

type lookupCond struct {
	query string
	value string
}

// taxonomyLookups is the match order for a free-text reference: id, slug as
// given, exact name, then name ignoring case. Names that only share a
// generated slug ("C" and "C++") stay distinct.
func taxonomyLookups(key string) []lookupCond {
	return []lookupCond{
		{"id = ?", key},
		{"slug = ?", key},
		{"name = ?", key},
		{"LOWER(name) = LOWER(?)", key},
	}
}

// takenSlugs lists slugs in table that could collide with base.
func takenSlugs(conn *gorm.DB, table, base, excludeID string) ([]string, error) {
	query := conn.Table(table).Where("slug = ? OR slug LIKE ?", base, base+"-%")
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var slugs []string
	if err := query.Pluck("slug", &slugs).Error; err != nil {
		return nil, err
	}
	return slugs, nil
}

// uniqueSlug resolves candidate against the current contents of table.
func uniqueSlug(conn *gorm.DB, table, candidate, fallback, excludeID string) (string, error) {
	base := slug.Base(candidate, fallback)
	existing, err := takenSlugs(conn, table, base, excludeID)
	if err != nil {
		return "", err
	}
	return slug.Resolve(base, fallback, existing), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RecountQueue remembers taxonomy ids whose recount failed after a commit.
type RecountQueue struct {
	mu         sync.Mutex
	categories map[string]struct{}
	tags       map[string]struct{}
}

func NewRecountQueue() *RecountQueue {
	return &RecountQueue{
		categories: make(map[string]struct{}),
		tags:       make(map[string]struct{}),
	}
}

func (q *RecountQueue) Enqueue(categoryIDs, tagIDs []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range categoryIDs {
		q.categories[id] = struct{}{}
	}
	for _, id := range tagIDs {
		q.tags[id] = struct{}{}
	}
}

// Drain empties the queue and returns its contents in sorted order.
func (q *RecountQueue) Drain() (categoryIDs, tagIDs []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	categoryIDs = keys(q.categories)
	tagIDs = keys(q.tags)
	q.categories = make(map[string]struct{})
	q.tags = make(map[string]struct{})
	return categoryIDs, tagIDs
}

func (q *RecountQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.categories) + len(q.tags)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Recounter keeps category and tag post counts in line with the join tables.
type Recounter struct {
	db    *gorm.DB
	queue *RecountQueue
}

func NewRecounter(gdb *gorm.DB, queue *RecountQueue) *Recounter {
	if queue == nil {
		queue = NewRecountQueue()
	}
	return &Recounter{db: gdb, queue: queue}
}

// Queue exposes pending retries.
func (r *Recounter) Queue() *RecountQueue {
	return r.queue
}

// Recount recomputes the given categories and tags.
func (r *Recounter) Recount(ctx context.Context, categoryIDs, tagIDs []string) error {
	conn := r.db.WithContext(ctx)
	if err := recount(conn, categoryKind, categoryIDs); err != nil {
		return err
	}
	return recount(conn, tagKind, tagIDs)
}

// AfterCommit recounts and, on failure, logs and queues the ids for the
// retry job. The write that triggered it has already succeeded.
func (r *Recounter) AfterCommit(ctx context.Context, categoryIDs, tagIDs []string) {
	if err := r.Recount(ctx, categoryIDs, tagIDs); err != nil {
		log.Warn().Err(err).
			Strs("categories", categoryIDs).
			Strs("tags", tagIDs).
			Msg("recount failed, queued for retry")
		r.queue.Enqueue(categoryIDs, tagIDs)
	}
}

// Flush retries queued recounts. Ids are put back when the retry fails.
func (r *Recounter) Flush(ctx context.Context) error {
	categoryIDs, tagIDs := r.queue.Drain()
	if len(categoryIDs) == 0 && len(tagIDs) == 0 {
		return nil
	}
	if err := r.Recount(ctx, categoryIDs, tagIDs); err != nil {
		r.queue.Enqueue(categoryIDs, tagIDs)
		return err
	}
	log.Info().Int("categories", len(categoryIDs)).Int("tags", len(tagIDs)).Msg("queued recounts applied")
	return nil
}

// ReconcileAll recomputes every category and tag.
func (r *Recounter) ReconcileAll(ctx context.Context) error {
	conn := r.db.WithContext(ctx)
	if err := recountAll(conn, categoryKind); err != nil {
		return err
	}
	return recountAll(conn, tagKind)
}
