package port

// Fields - пары ключ-значение, которые адаптер логгера выводит рядом с сообщением
type Fields map[string]any

// LoggerPort - логгер, которым пользуются ядро и адаптеры.
// Реализации: slog/tint, fluent и их объединение.
type LoggerPort interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)

	// WithFields возвращает логгер, который добавляет fields к каждой записи
	WithFields(fields Fields) LoggerPort
}
