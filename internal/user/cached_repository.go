package user

import (
	"context"
	"time"
)

// UserCache is the subset of cache.ViewCache[User] the repository decorator needs.
type UserCache interface {
	Get(ctx context.Context, id string) (User, bool)
	Set(ctx context.Context, id string, value User)
	Delete(ctx context.Context, id string)
}

type cachedRepository struct {
	Repository
	cache UserCache
}

// NewCachedRepository serves GetByID from cache and evicts entries on update and delete.
// Writes evict again once the store has committed, so a read that raced the write
// cannot leave the old document cached.
func NewCachedRepository(next Repository, cache UserCache) Repository {
	return &cachedRepository{Repository: next, cache: cache}
}

func (r *cachedRepository) GetByID(ctx context.Context, id string) (User, error) {
	if u, ok := r.cache.Get(ctx, id); ok {
		return u, nil
	}
	u, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	r.cache.Set(ctx, id, u)
	return u, nil
}

func (r *cachedRepository) UpdateByClerkID(ctx context.Context, clerkID string, patch UpdateUserInput, updatedAt time.Time) (User, error) {
	u, err := r.Repository.UpdateByClerkID(ctx, clerkID, patch, updatedAt)
	if err != nil {
		return User{}, err
	}
	r.cache.Delete(ctx, u.ID)
	return u, nil
}

func (r *cachedRepository) DeleteByID(ctx context.Context, id string) (User, error) {
	r.cache.Delete(ctx, id)
	u, err := r.Repository.DeleteByID(ctx, id)
	r.cache.Delete(ctx, id)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
