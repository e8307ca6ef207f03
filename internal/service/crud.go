package service

import (
	"context"
	"fmt"

	"schoolhub/internal/repository"
)

func findOne[T any](ctx context.Context, store repository.Store[T], what, id string) (*T, error) {
	parsed, err := parseID(what, id)
	if err != nil {
		return nil, err
	}
	rec, err := store.FindByID(ctx, parsed)
	if err != nil {
		return nil, lookupErr(what, err)
	}
	return rec, nil
}

func deleteOne[T any](ctx context.Context, store repository.Store[T], what, id string) error {
	parsed, err := parseID(what, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, parsed); err != nil {
		return lookupErr(what, err)
	}
	return nil
}

// mustExist is findOne for references inside a request body: a missing
// record is the caller's input error rather than a 404
func mustExist[T any](ctx context.Context, store repository.Store[T], what, id string) (*T, error) {
	rec, err := findOne(ctx, store, what, id)
	if isNotFound(err) {
		return nil, invalid("%s '%s' does not exist", what, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", what, err)
	}
	return rec, nil
}
