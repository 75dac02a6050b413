package constants

// Обменники
const (
	ExchangeListingEvents = "listing_events_exchange"
	ExchangeSweepCommands = "aggregator_commands_exchange"
	ExchangeTypeDirect    = "direct"
	ExchangeTypeTopic     = "topic"
)

// Имена очередей
const (
	QueueSweepCommands = "aggregator_sweep_commands"
)

// Ключи маршрутизации
const (
	RoutingKeyListingsCreated = "listings.created"
	RoutingKeyListingDeleted  = "listings.deleted"
	RoutingKeySweepCommands   = "aggregator.sweeps.run"
)

const (
	RetryExchangeForSweepCommands = "aggregator_sweep_commands_retry"
	RetryQueueForSweepCommands    = "aggregator_sweep_commands_wait"

	FinalDLXExchangeForSweepCommands   = "aggregator_sweep_commands_final_dlx"
	FinalDLQForSweepCommands           = "aggregator_sweep_commands_final_dlq"
	FinalDLQRoutingKeyForSweepCommands = "aggregator_sweep_commands.dlq.key"
)

// Типы и версии сообщений, совпадают с ключами схем в contracts
const (
	EventTypeListingsCreated = "ListingsCreatedEvent"
	EventTypeListingDeleted  = "ListingDeletedEvent"
	CommandTypeSweep         = "SweepCommand"
	MessageVersionV1         = "1.0.0"
)
