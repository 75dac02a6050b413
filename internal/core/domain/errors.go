package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок ядра. Конкретные ошибки оборачиваются через %w и проверяются errors.Is.
var (
	// ErrConfiguration - адаптеру не хватает входных данных (нет URL, неизвестный источник, пустой маппинг)
	ErrConfiguration = errors.New("configuration error")

	// ErrTransientNetwork - таймаут, сброс или обрыв соединения
	ErrTransientNetwork = errors.New("transient network error")

	// ErrSourceShape - источник вернул ответ неожиданной структуры
	ErrSourceShape = errors.New("unexpected source response shape")

	// ErrPersistence - ошибка хранилища
	ErrPersistence = errors.New("persistence error")
)

// ErrInvalidCriteria - некорректные критерии поиска, частный случай ошибки конфигурации
var ErrInvalidCriteria = fmt.Errorf("%w: invalid search criteria", ErrConfiguration)
