package rabbitmq_consumer

import "context"

// Consumer - общий контракт потребителей пакета
type Consumer interface {
	StartConsuming(ctx context.Context) error
	Close() error
}

var _ Consumer = (*DistributingConsumer)(nil)
