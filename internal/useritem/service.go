// Package useritem はユーザーごとのアイテム発見記録のドメインロジックを提供する。
package useritem

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/grailtracker/internal/model"
	"github.com/hitoshi/grailtracker/internal/repository"
)

// ItemCatalog はitemKeyの存在確認に必要なカタログのインターフェース。
type ItemCatalog interface {
	Exists(itemKey string) bool
}

// Service はアイテム発見記録のサービス層。
type Service struct {
	repo    repository.UserItemRepository
	catalog ItemCatalog
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.UserItemRepository, catalog ItemCatalog) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		now:     time.Now,
	}
}

// List はユーザーの全記録を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.UserItem, error) {
	items, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アイテム記録一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// ListFound はユーザーの発見済み記録のみを返す。
func (s *Service) ListFound(ctx context.Context, userID string) ([]*model.UserItem, error) {
	items, err := s.repo.ListFoundByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("発見済みアイテムの取得に失敗しました: %w", err)
	}
	return items, nil
}

// Set はアイテムの発見状態を設定する。
// found=trueなら発見時刻を現在時刻で記録し、falseなら記録を削除する。
// カタログにないitemKeyはmodel.ErrUnknownItemKeyを返す。
func (s *Service) Set(ctx context.Context, userID, itemKey string, found bool) error {
	if !s.catalog.Exists(itemKey) {
		return model.ErrUnknownItemKey
	}

	if !found {
		if err := s.repo.Delete(ctx, userID, itemKey); err != nil {
			return fmt.Errorf("アイテム記録の削除に失敗しました: %w", err)
		}
		return nil
	}

	foundAt := s.now()
	item := &model.UserItem{
		ID:      uuid.New().String(),
		UserID:  userID,
		ItemKey: itemKey,
		Found:   true,
		FoundAt: &foundAt,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return fmt.Errorf("アイテム記録の保存に失敗しました: %w", err)
	}
	return nil
}
