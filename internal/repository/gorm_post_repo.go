package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// GormPostRepository implements PostRepository using GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-backed post repository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// Save persists a new post. The audience columns are written once here and
// never updated afterwards.
func (r *GormPostRepository) Save(ctx context.Context, post *domain.Post) error {
	model, err := domain.NewPostModel(post)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID loads a single post.
func (r *GormPostRepository) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	var model domain.PostModel
	err := r.db.WithContext(ctx).
		Where("id = ?", postID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRecent returns the newest posts across all authors, unfiltered.
func (r *GormPostRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Post, error) {
	var models []domain.PostModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainPosts(models), nil
}

// ListByAuthor returns the author's newest posts, unfiltered.
func (r *GormPostRepository) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*domain.Post, error) {
	var models []domain.PostModel
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainPosts(models), nil
}

func toDomainPosts(models []domain.PostModel) []*domain.Post {
	posts := make([]*domain.Post, 0, len(models))
	for i := range models {
		posts = append(posts, models[i].ToDomain())
	}
	return posts
}

// Ensure interface is satisfied at compile time.
var _ PostRepository = (*GormPostRepository)(nil)
