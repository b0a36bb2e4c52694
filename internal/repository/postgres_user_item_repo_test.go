package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/grailtracker/internal/model"
)

func TestPostgresUserItemRepo_ImplementsInterface(t *testing.T) {
	var _ UserItemRepository = (*PostgresUserItemRepo)(nil)
}

func TestPostgresUserItemRepo_UpsertKeepsIDAndListsFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	repo := NewPostgresUserItemRepo(db)

	user := &model.User{ID: uuid.New().String(), Email: strPtr("i@x.com"), CreatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create(user) error = %v", err)
	}

	foundAt := time.Now().UTC().Truncate(time.Second)
	first := &model.UserItem{ID: uuid.New().String(), UserID: user.ID, ItemKey: "Ber", Found: true, FoundAt: &foundAt}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	other := &model.UserItem{ID: uuid.New().String(), UserID: user.ID, ItemKey: "Amn", Found: false}
	if err := repo.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert(other) error = %v", err)
	}

	// 同じ(user_id, item_key)への再Upsertは既存行のIDを維持する
	again := &model.UserItem{ID: uuid.New().String(), UserID: user.ID, ItemKey: "Ber", Found: true, FoundAt: &foundAt}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert(again) error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("ID after conflict = %q, want %q", again.ID, first.ID)
	}

	all, err := repo.ListByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	// item_key順
	if all[0].ItemKey != "Amn" || all[1].ItemKey != "Ber" {
		t.Errorf("order = %s, %s; want Amn, Ber", all[0].ItemKey, all[1].ItemKey)
	}

	found, err := repo.ListFoundByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListFoundByUserID() error = %v", err)
	}
	if len(found) != 1 || found[0].ItemKey != "Ber" {
		t.Fatalf("found = %+v, want only Ber", found)
	}
	if found[0].FoundAt == nil || !found[0].FoundAt.Equal(foundAt) {
		t.Errorf("FoundAt = %v, want %v", found[0].FoundAt, foundAt)
	}
}

func TestPostgresUserItemRepo_DeleteIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	repo := NewPostgresUserItemRepo(db)

	user := &model.User{ID: uuid.New().String(), Email: strPtr("d@x.com"), CreatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create(user) error = %v", err)
	}
	if err := repo.Upsert(ctx, &model.UserItem{ID: uuid.New().String(), UserID: user.ID, ItemKey: "enigma", Found: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.Delete(ctx, user.ID, "enigma"); err != nil {
			t.Fatalf("Delete() call %d error = %v", i+1, err)
		}
	}

	items, err := repo.ListByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestPostgresOAuthStateRepo_ExpiredStateIsRejectedAndSwept(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresOAuthStateRepo(db)

	if err := repo.Create(ctx, &model.OAuthState{State: "old", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := repo.DeleteValid(ctx, "old", time.Now())
	if err != nil || ok {
		t.Errorf("DeleteValid(expired) = %v, %v; want false, nil", ok, err)
	}

	n, err := repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
}
