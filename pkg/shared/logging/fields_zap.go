package logging

import "go.uber.org/zap"

// ToZap converts the field set to zap.Field values, the concrete logging
// backend hazengine threads through every calculator and task.
func (f Fields) ToZap() []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
