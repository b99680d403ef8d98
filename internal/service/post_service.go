package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// feedCandidateWindow bounds how many recent posts a feed request
// considers before visibility filtering. Filtering runs over the whole
// window first, so a requested page holds only visible items.
const feedCandidateWindow = 500

// postService implements PostService.
type postService struct {
	repo      repository.PostRepository
	audience  AudienceService
	publisher eventbroker.PostEventPublisher
}

// NewPostService creates a new PostService instance.
func NewPostService(repo repository.PostRepository, audience AudienceService, publisher eventbroker.PostEventPublisher) PostService {
	return &postService{
		repo:      repo,
		audience:  audience,
		publisher: publisher,
	}
}

// CreatePost validates the audience descriptor, persists the post, and
// announces it for fan-out. The announcement is best effort: the post is
// already committed, so a broker hiccup must not fail the request.
func (s *postService) CreatePost(ctx context.Context, authorID, content string, aud domain.Audience) (*domain.Post, error) {
	if authorID == "" {
		return nil, ErrInvalidUserID
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	if err := s.audience.ValidateAudience(ctx, authorID, aud); err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		Audience:  aud,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Save(ctx, post); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str(pkglog.FieldUserID, authorID).
			Msg("failed to save post")
		return nil, upstream(err)
	}

	if s.publisher == nil {
		return post, nil
	}

	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).
			Str(pkglog.FieldPostID, post.ID).
			Msg("failed to publish post.created event")
	}

	return post, nil
}

// GetPost loads a post and enforces its audience against the viewer.
func (s *postService) GetPost(ctx context.Context, postID, viewerID string) (*domain.Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, upstream(err)
	}

	visible, err := s.audience.CanView(ctx, post, viewerID)
	if err != nil {
		return nil, upstream(err)
	}
	if !visible {
		return nil, ErrPostNotVisible
	}
	return post, nil
}

// Feed returns a page of recent posts visible to the viewer. The candidate
// window is filtered before the page is sliced.
func (s *postService) Feed(ctx context.Context, viewerID string, page, limit int) ([]*domain.Post, error) {
	candidates, err := s.repo.ListRecent(ctx, feedCandidateWindow)
	if err != nil {
		return nil, upstream(err)
	}
	return s.filterAndSlice(ctx, candidates, viewerID, page, limit)
}

// ListByAuthor returns a page of the author's posts visible to the viewer.
func (s *postService) ListByAuthor(ctx context.Context, authorID, viewerID string, page, limit int) ([]*domain.Post, error) {
	if authorID == "" {
		return nil, ErrInvalidUserID
	}

	candidates, err := s.repo.ListByAuthor(ctx, authorID, feedCandidateWindow)
	if err != nil {
		return nil, upstream(err)
	}
	return s.filterAndSlice(ctx, candidates, viewerID, page, limit)
}

func (s *postService) filterAndSlice(ctx context.Context, candidates []*domain.Post, viewerID string, page, limit int) ([]*domain.Post, error) {
	visible, err := s.audience.FilterFeed(ctx, candidates, viewerID)
	if err != nil {
		return nil, upstream(err)
	}

	offset, limit := normalizePage(page, limit)
	if offset >= len(visible) {
		return []*domain.Post{}, nil
	}
	end := offset + limit
	if end > len(visible) {
		end = len(visible)
	}
	return visible[offset:end], nil
}

// Ensure interface is satisfied at compile time.
var _ PostService = (*postService)(nil)
