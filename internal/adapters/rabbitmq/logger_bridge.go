package rabbitmq

import (
	"listing-aggregator-service/internal/core/port"
	"listing-aggregator-service/pkg/rabbitmq/rabbitmq_common"
)

// PkgLoggerBridge пропускает логи pkg/rabbitmq через LoggerPort сервиса
type PkgLoggerBridge struct {
	target port.LoggerPort
}

func NewPkgLoggerBridge(logger port.LoggerPort) rabbitmq_common.Logger {
	return &PkgLoggerBridge{target: logger}
}

// pairsToFields собирает пары ключ-значение в Fields.
// Пары с нестроковым ключом и непарный хвост отбрасываются.
func pairsToFields(kv []any) port.Fields {
	if len(kv) < 2 {
		return nil
	}
	fields := port.Fields{}
	for i := 1; i < len(kv); i += 2 {
		if key, ok := kv[i-1].(string); ok {
			fields[key] = kv[i]
		}
	}
	return fields
}

func (b *PkgLoggerBridge) Debug(msg string, kv ...any) { b.target.Debug(msg, pairsToFields(kv)) }
func (b *PkgLoggerBridge) Info(msg string, kv ...any)  { b.target.Info(msg, pairsToFields(kv)) }
func (b *PkgLoggerBridge) Warn(msg string, kv ...any)  { b.target.Warn(msg, pairsToFields(kv)) }

func (b *PkgLoggerBridge) Error(err error, msg string, kv ...any) {
	b.target.Error(msg, err, pairsToFields(kv))
}
