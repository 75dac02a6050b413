package port

import "context"

// EventListenerPort - входящий адаптер, который слушает внешние команды
// и запускает соответствующую бизнес-логику
type EventListenerPort interface {
	// Start блокируется до отмены ctx или критической ошибки
	Start(ctx context.Context) error

	// Close дожидается активных обработчиков и освобождает ресурсы
	Close() error
}
