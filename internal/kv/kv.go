// Package kv - именованные ячейки "ключ - значение", в которых целиком хранится коллекция задач.
package kv

import (
	"context"
	"errors"
)

// ErrMissing - в ячейке ещё ничего не записано
var ErrMissing = errors.New("ключ отсутствует")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}
