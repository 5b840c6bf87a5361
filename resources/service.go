package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-agency-admin/apiclient"
	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/querycache"
	"github.com/rs/zerolog/log"
)

// Dynamic is a resource service addressed by name, with JSON in and
// untyped results out. Used by the command line.
type Dynamic interface {
	Resource() Resource
	ListAny(ctx context.Context, filter url.Values) (any, error)
	GetAny(ctx context.Context, id string) (any, error)
	CreateJSON(ctx context.Context, body []byte) (any, error)
	UpdateJSON(ctx context.Context, id string, body []byte) (any, error)
	Delete(ctx context.Context, id string) error
}

// Service is the CRUD client of one resource.
type Service[T any] struct {
	resource Resource
	client   *apiclient.Client
	cache    *querycache.Cache
	registry *Registry
}

var _ Dynamic = (*Service[Customer])(nil)

func NewService[T any](resource Resource, client *apiclient.Client, cache *querycache.Cache, registry *Registry) *Service[T] {
	return &Service[T]{resource: resource, client: client, cache: cache, registry: registry}
}

func (s *Service[T]) Resource() Resource {
	return s.resource
}

// List returns the records matching filter, from cache when fresh.
func (s *Service[T]) List(ctx context.Context, filter url.Values) ([]T, error) {
	return querycache.Get(ctx, s.cache, s.resource.ListKey(filter), func(ctx context.Context) ([]T, error) {
		var out []T
		if err := s.client.Get(ctx, s.resource.Path, filter, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Get returns one record, from cache when fresh.
func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	return querycache.Get(ctx, s.cache, s.resource.DetailKey(id), func(ctx context.Context) (T, error) {
		var out T
		err := s.client.Get(ctx, s.resource.ItemPath(id), nil, &out)
		return out, err
	})
}

func (s *Service[T]) Create(ctx context.Context, in T) (T, error) {
	var out T
	err := s.write(ctx, Create, "", func(ctx context.Context) error {
		return s.client.Post(ctx, s.resource.Path, in, &out)
	})
	return out, err
}

func (s *Service[T]) Update(ctx context.Context, id string, in T) (T, error) {
	var out T
	err := s.write(ctx, Update, id, func(ctx context.Context) error {
		return s.client.Put(ctx, s.resource.ItemPath(id), in, &out)
	})
	return out, err
}

func (s *Service[T]) Delete(ctx context.Context, id string) error {
	return s.write(ctx, Delete, id, func(ctx context.Context) error {
		return s.client.Delete(ctx, s.resource.ItemPath(id))
	})
}

func (s *Service[T]) write(ctx context.Context, m Mutation, id string, mutate func(ctx context.Context) error) error {
	if s.resource.ReadOnly {
		return fmt.Errorf("[Service %s] %s: %w", s.resource.Name, m, apperrors.ErrReadOnlyResource)
	}
	keys, err := s.registry.Keys(s.resource, m, id)
	if err != nil {
		return err
	}
	if err := s.cache.Write(ctx, keys, mutate); err != nil {
		return fmt.Errorf("[Service %s] %s: %w", s.resource.Name, m, err)
	}
	log.Debug().Str("resource", s.resource.Name).Str("mutation", m.String()).Str("id", id).Msg("Mutation applied")
	return nil
}

func (s *Service[T]) ListAny(ctx context.Context, filter url.Values) (any, error) {
	return s.List(ctx, filter)
}

func (s *Service[T]) GetAny(ctx context.Context, id string) (any, error) {
	return s.Get(ctx, id)
}

func (s *Service[T]) CreateJSON(ctx context.Context, body []byte) (any, error) {
	var in T
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("[Service %s] decode: %w", s.resource.Name, err)
	}
	return s.Create(ctx, in)
}

func (s *Service[T]) UpdateJSON(ctx context.Context, id string, body []byte) (any, error) {
	var in T
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("[Service %s] decode: %w", s.resource.Name, err)
	}
	return s.Update(ctx, id, in)
}
