package transaction

import "context"

// Appender is the transaction log API.
type Appender interface {
	Append(ctx context.Context, l Log) error
}
