package logging

import (
	"go.uber.org/zap"

	"github.com/akshitanchan/marketsim/internal/domain"
)

// String constructs a field with the given key and value.
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

// Int constructs a field with the given key and value.
func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

// Int64 constructs a field with the given key and value.
func Int64(key string, val int64) zap.Field {
	return zap.Int64(key, val)
}

// Uint64 constructs a field with the given key and value.
func Uint64(key string, val uint64) zap.Field {
	return zap.Uint64(key, val)
}

// Bool constructs a field with the given key and value.
func Bool(key string, val bool) zap.Field {
	return zap.Bool(key, val)
}

// Error constructs a field that lazily stores err.Error() under the key "error".
func Error(err error) zap.Field {
	return zap.Error(err)
}

// SimTime logs simulated time in its clock form.
func SimTime(key string, t domain.SimTime) zap.Field {
	return zap.Stringer(key, t)
}

// AgentID logs an agent id under the key "agent".
func AgentID(id domain.AgentID) zap.Field {
	return zap.Int("agent", int(id))
}

// OrderID logs an order id under the key "order".
func OrderID(id domain.OrderID) zap.Field {
	return zap.Uint64("order", uint64(id))
}

// Symbol logs an instrument symbol.
func Symbol(s string) zap.Field {
	return zap.String("symbol", s)
}
