package logger_adapter

import (
	"errors"

	"listing-aggregator-service/internal/core/port"
)

// MultiLoggerAdapter дублирует записи во все вложенные логгеры (stdout и fluent)
type MultiLoggerAdapter struct {
	sinks []port.LoggerPort
}

// NewMultiloggerAdapter пропускает nil. Если остался один логгер, он возвращается как есть.
func NewMultiloggerAdapter(loggers ...port.LoggerPort) (port.LoggerPort, error) {
	var sinks []port.LoggerPort
	for _, l := range loggers {
		if l != nil {
			sinks = append(sinks, l)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, errors.New("multilogger: at least one logger is required")
	case 1:
		return sinks[0], nil
	}
	return &MultiLoggerAdapter{sinks: sinks}, nil
}

func (m *MultiLoggerAdapter) each(fn func(port.LoggerPort)) {
	for _, s := range m.sinks {
		fn(s)
	}
}

func (m *MultiLoggerAdapter) Debug(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Debug(msg, fields) })
}

func (m *MultiLoggerAdapter) Info(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Info(msg, fields) })
}

func (m *MultiLoggerAdapter) Warn(msg string, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Warn(msg, fields) })
}

func (m *MultiLoggerAdapter) Error(msg string, err error, fields port.Fields) {
	m.each(func(l port.LoggerPort) { l.Error(msg, err, fields) })
}

func (m *MultiLoggerAdapter) WithFields(fields port.Fields) port.LoggerPort {
	child := &MultiLoggerAdapter{sinks: make([]port.LoggerPort, len(m.sinks))}
	for i, s := range m.sinks {
		child.sinks[i] = s.WithFields(fields)
	}
	return child
}
