package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxUploadSize caps a single media upload (20 MB).
const MaxUploadSize = 20 << 20

// maxImagePixels guards DecodeConfig results against decompression bombs.
const maxImagePixels = 100_000_000

var allowedMediaTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"application/pdf": ".pdf",
}

// Media kinds derived from the MIME type.
const (
	MediaKindImage    = "image"
	MediaKindVideo    = "video"
	MediaKindDocument = "document"
)

// MediaService stores uploads in a blob store and keeps their metadata.
type MediaService struct {
	db     *gorm.DB
	store  storage.BlobStore
	policy auth.Policy
	now    func() time.Time
}

// UploadInput carries one uploaded file.
type UploadInput struct {
	Filename    string
	Data        []byte
	Alt         string
	Description string
}

// MediaFilter narrows List. Kind is image, video or document.
type MediaFilter struct {
	Search string
	Kind   string
	Page   int
	Limit  int
}

// MediaPatch is accepted by Update; nil fields are left unchanged.
type MediaPatch struct {
	Alt         *string
	Description *string
}

// MediaListResult is one page of media.
type MediaListResult struct {
	Items      []db.Media
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// MediaStats summarises the library.
type MediaStats struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"byKind"`
}

type mediaMeta struct {
	Kind      string `json:"kind"`
	Extension string `json:"extension"`
	Format    string `json:"format,omitempty"`
}

func NewMediaService(gdb *gorm.DB, store storage.BlobStore) *MediaService {
	return &MediaService{db: gdb, store: store, now: time.Now}
}

// Upload validates the file, writes it to the blob store and records it.
// The blob is removed again when the row cannot be saved.
func (s *MediaService) Upload(ctx context.Context, input UploadInput, uploader auth.Principal) (*db.Media, error) {
	if uploader.Anonymous() {
		return nil, ErrForbidden
	}
	if len(input.Data) == 0 {
		return nil, invalid("file", "file is empty")
	}
	if len(input.Data) > MaxUploadSize {
		return nil, invalid("file", "file is larger than %d MB", MaxUploadSize>>20)
	}

	contentType := detectContentType(input.Filename, input.Data)
	defaultExt, ok := allowedMediaTypes[contentType]
	if !ok {
		return nil, invalid("file", "file type %q is not allowed", contentType)
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	if ext == "" {
		ext = defaultExt
	}
	meta := mediaMeta{Kind: mediaKind(contentType), Extension: ext}

	var width, height int
	if meta.Kind == MediaKindImage && contentType != "image/svg+xml" {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(input.Data))
		if err != nil {
			return nil, invalid("file", "image cannot be decoded")
		}
		if cfg.Width*cfg.Height > maxImagePixels {
			return nil, invalid("file", "image dimensions are too large")
		}
		width, height, meta.Format = cfg.Width, cfg.Height, format
	}

	now := s.now().UTC()
	filename := uuid.NewString() + ext
	key := path.Join("media", fmt.Sprintf("%d/%02d", now.Year(), now.Month()), filename)

	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(input.Data), int64(len(input.Data)))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	originalName := filepath.Base(strings.TrimSpace(input.Filename))
	media := db.Media{
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     contentType,
		Size:         int64(len(input.Data)),
		StorageKey:   key,
		URL:          url,
		Width:        width,
		Height:       height,
		Meta:         datatypes.JSON(rawMeta),
		Alt:          firstNonEmpty(input.Alt, originalName),
		Description:  strings.TrimSpace(input.Description),
		UploadedByID: uploader.ID,
	}
	if err := s.db.WithContext(ctx).Create(&media).Error; err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("orphaned upload could not be removed")
		}
		return nil, err
	}
	return &media, nil
}

// List returns media, newest first.
func (s *MediaService) List(ctx context.Context, filter MediaFilter) (*MediaListResult, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	kind := strings.ToLower(strings.TrimSpace(filter.Kind))
	switch kind {
	case "", MediaKindImage, MediaKindVideo, MediaKindDocument:
	default:
		return nil, invalid("kind", "unknown media kind %q", filter.Kind)
	}
	search := strings.TrimSpace(filter.Search)

	scope := func(query *gorm.DB) *gorm.DB {
		if search != "" {
			pattern := likePattern(search)
			query = query.Where(fmt.Sprintf("(%s OR %s)", likeClause("original_name"), likeClause("filename")), pattern, pattern)
		}
		switch kind {
		case MediaKindImage, MediaKindVideo:
			query = query.Where("mime_type LIKE ?", kind+"/%")
		case MediaKindDocument:
			query = query.Where("mime_type NOT LIKE ? AND mime_type NOT LIKE ?", "image/%", "video/%")
		}
		return query
	}

	conn := s.db.WithContext(ctx)
	result := &MediaListResult{Page: page, Limit: limit}
	if err := conn.Model(&db.Media{}).Scopes(scope).Count(&result.Total).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&db.Media{}).Scopes(scope).
		Order("created_at desc").Order("id asc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}
	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

func (s *MediaService) Get(ctx context.Context, id string) (*db.Media, error) {
	var media db.Media
	if err := s.db.WithContext(ctx).First(&media, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return &media, nil
}

// Update changes alt text and description. Same rights as Remove.
func (s *MediaService) Update(ctx context.Context, id string, patch MediaPatch, actor auth.Principal) (*db.Media, error) {
	media, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Authorize(actor, auth.ActionDeleteMedia, media.UploadedByID) {
		return nil, ErrForbidden
	}

	updates := map[string]any{}
	if patch.Alt != nil {
		updates["alt"] = strings.TrimSpace(*patch.Alt)
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(media).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Remove deletes the record and then the blob. A blob that cannot be removed
// is logged; the record is already gone.
func (s *MediaService) Remove(ctx context.Context, id string, actor auth.Principal) error {
	media, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.Authorize(actor, auth.ActionDeleteMedia, media.UploadedByID) {
		return ErrForbidden
	}
	if err := s.db.WithContext(ctx).Delete(media).Error; err != nil {
		return err
	}
	if err := s.store.Delete(ctx, media.StorageKey); err != nil {
		log.Warn().Err(err).Str("key", media.StorageKey).Msg("media blob could not be removed")
	}
	return nil
}

// Stats counts media per kind.
func (s *MediaService) Stats(ctx context.Context) (*MediaStats, error) {
	var rows []struct {
		MimeType string
		Count    int64
	}
	if err := s.db.WithContext(ctx).Model(&db.Media{}).
		Select("mime_type, COUNT(*) AS count").
		Group("mime_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &MediaStats{ByKind: map[string]int64{}}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByKind[mediaKind(row.MimeType)] += row.Count
	}
	return stats, nil
}

func detectContentType(filename string, data []byte) string {
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	// DetectContentType reports SVG as XML or plain text.
	if strings.HasSuffix(strings.ToLower(filename), ".svg") &&
		(strings.Contains(contentType, "xml") || strings.HasPrefix(contentType, "text/plain")) {
		return "image/svg+xml"
	}
	return contentType
}

func mediaKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaKindImage
	case strings.HasPrefix(contentType, "video/"):
		return MediaKindVideo
	default:
		return MediaKindDocument
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
