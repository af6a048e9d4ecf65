package service

import (
	"context"
	"strings"
	"time"

	"go-feeds/internal/model"
)

// MaxFavorites 收藏列表最多返回的条数
const MaxFavorites = 1000

type FavoriteStore interface {
	SaveFavorite(ctx context.Context, fav *model.Favorite) error
	DeleteFavorite(ctx context.Context, userID, articleID string) error
	ListFavorites(ctx context.Context, userID string, limit int) ([]model.Favorite, error)
}

// FavoriteInput 收藏时由客户端提交的文章快照
type FavoriteInput struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	FeedTitle   string  `json:"feedTitle"`
	ImageURL    *string `json:"imageUrl"`
}

type FavoriteService struct {
	store FavoriteStore
	now   func() time.Time
}

func NewFavoriteService(st FavoriteStore) *FavoriteService {
	return &FavoriteService{store: st, now: utcNow}
}

func (s *FavoriteService) Add(ctx context.Context, userID, articleID string, in FavoriteInput) (*model.Favorite, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return nil, invalid("id", "article id is required")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, invalid("", "article title and url are required")
	}

	fav := &model.Favorite{
		UserID:      userID,
		ArticleID:   articleID,
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		FeedTitle:   in.FeedTitle,
		ImageURL:    in.ImageURL,
		SavedAt:     s.now(),
	}
	if err := s.store.SaveFavorite(ctx, fav); err != nil {
		return nil, err
	}
	return fav, nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, articleID string) error {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return invalid("id", "article id is required")
	}
	return s.store.DeleteFavorite(ctx, userID, articleID)
}

// List 按收藏时间倒序
func (s *FavoriteService) List(ctx context.Context, userID string) ([]model.Favorite, error) {
	favs, err := s.store.ListFavorites(ctx, userID, MaxFavorites)
	if err != nil {
		return nil, err
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	return favs, nil
}
