package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/canteen-engine/internal/core/domain"
	"github.com/rl1809/canteen-engine/internal/port"
)

// DefaultChannels are the forum channels accepted when none are configured.
var DefaultChannels = []string{"general", "academics", "events", "clubs", "placements"}

type ForumService struct {
	store    port.TxStore
	retry    RetryPolicy
	channels []string
	logger   *zap.Logger
	now      func() time.Time
}

func NewForumService(store port.TxStore, retry RetryPolicy, channels []string, logger *zap.Logger) *ForumService {
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	return &ForumService{
		store:    store,
		retry:    retry.normalized(),
		channels: channels,
		logger:   nopIfNil(logger).Named("forum"),
		now:      time.Now,
	}
}

func (s *ForumService) CreatePost(ctx context.Context, req domain.CreatePostRequest) (*domain.Post, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	verr := validateStruct(req)
	if req.Channel != "" && !slices.Contains(s.channels, req.Channel) {
		verr.Add("channel", "is not a known channel")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	post := domain.Post{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Content:    req.Content,
		Channel:    req.Channel,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
		CreatedAt:  s.now().UTC(),
	}
	err := s.retry.run(ctx, s.logger, "create post", func() error {
		return s.store.RunInTx(ctx, func(tx port.Tx) error {
			return tx.Forum().CreatePost(ctx, post)
		})
	})
	if err != nil {
		return nil, classify("create post", err)
	}
	return &post, nil
}

// Upvote adds one vote and returns the new count. Concurrent votes are never lost.
func (s *ForumService) Upvote(ctx context.Context, postID string) (int, error) {
	var upvotes int
	err := s.retry.run(ctx, s.logger, "upvote", func() error {
		return s.store.RunInTx(ctx, func(tx port.Tx) error {
			post, err := getPost(ctx, tx, postID)
			if err != nil {
				return err
			}
			if err := tx.Forum().ApplyPostDelta(ctx, postID, domain.PostDelta{Upvotes: 1}); err != nil {
				return fmt.Errorf("apply upvote: %w", err)
			}
			upvotes = post.Upvotes + 1
			return nil
		})
	})
	if err != nil {
		return 0, classify("upvote", err)
	}
	return upvotes, nil
}

// AddComment stores the comment and bumps the post's comment count together.
func (s *ForumService) AddComment(ctx context.Context, req domain.AddCommentRequest) (*domain.Comment, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateStruct(req).OrNil(); err != nil {
		return nil, err
	}

	var added *domain.Comment
	err := s.retry.run(ctx, s.logger, "add comment", func() error {
		return s.store.RunInTx(ctx, func(tx port.Tx) error {
			if _, err := getPost(ctx, tx, req.PostID); err != nil {
				return err
			}

			c := domain.Comment{
				ID:         uuid.NewString(),
				PostID:     req.PostID,
				AuthorID:   req.AuthorID,
				AuthorName: req.AuthorName,
				Content:    req.Content,
				CreatedAt:  s.now().UTC(),
			}
			if err := tx.Forum().AppendComment(ctx, c); err != nil {
				return fmt.Errorf("append comment: %w", err)
			}
			if err := tx.Forum().ApplyPostDelta(ctx, req.PostID, domain.PostDelta{Comments: 1}); err != nil {
				return fmt.Errorf("bump comment count: %w", err)
			}
			added = &c
			return nil
		})
	})
	if err != nil {
		err = classify("add comment", err)
		s.logger.Info("comment rejected", zap.String("post_id", req.PostID), zap.Error(err))
		return nil, err
	}
	return added, nil
}

func getPost(ctx context.Context, tx port.Tx, postID string) (*domain.Post, error) {
	post, err := tx.Forum().GetPost(ctx, postID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, &domain.PostNotFoundError{PostID: postID}
	}
	if err != nil {
		return nil, fmt.Errorf("read post %s: %w", postID, err)
	}
	return post, nil
}
