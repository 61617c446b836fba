package backend

import (
	"context"
	"errors"
	"fmt"
)

// validator is implemented by records that can check themselves before
// they are sent to the backend.
type validator interface {
	Validate() error
}

func validate(item any) error {
	if v, ok := item.(validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

var errMissingID = errors.New("id is required")

// Collection is a typed view of one backend resource.
type Collection[T any] struct {
	client   *Client
	resource string
}

// NewCollection binds resource on client and registers it for health tracking.
func NewCollection[T any](client *Client, resource string) *Collection[T] {
	client.Track(resource)
	return &Collection[T]{client: client, resource: resource}
}

// Resource returns the resource path.
func (c *Collection[T]) Resource() string {
	return c.resource
}

// List fetches the whole collection.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	if err := c.client.List(ctx, c.resource, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get fetches one record.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	if id == "" {
		return item, fmt.Errorf("%w: %w", ErrInvalidInput, errMissingID)
	}
	err := c.client.Get(ctx, c.resource, id, &item)
	return item, err
}

// Create validates item and posts it. The backend's copy is returned, or
// item itself when the backend returns no data.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	if err := validate(item); err != nil {
		var zero T
		return zero, err
	}

	created := item
	if err := c.client.Create(ctx, c.resource, item, &created); err != nil {
		var zero T
		return zero, err
	}
	return created, nil
}

// Update validates item and replaces record id with it.
func (c *Collection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: %w", ErrInvalidInput, errMissingID)
	}
	if err := validate(item); err != nil {
		return zero, err
	}

	updated := item
	if err := c.client.Update(ctx, c.resource, id, item, &updated); err != nil {
		return zero, err
	}
	return updated, nil
}

// Delete removes record id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errMissingID)
	}
	return c.client.Delete(ctx, c.resource, id)
}
