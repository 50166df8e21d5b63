package repository

import "errors"

var (
	ErrNotFound        = errors.New("задача не найдена")
	ErrVersionConflict = errors.New("конфликт версий")
	// ErrCorruptState - сохранённые данные не читаются или не проходят проверку
	ErrCorruptState = errors.New("повреждённые данные хранилища")
	// ErrUnsupportedSchema - данные записаны более новой версией схемы
	ErrUnsupportedSchema = errors.New("неподдерживаемая версия схемы")
)
