package logadapter

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"

	"github.com/sunder-dev/rundedupe/dedupe"
)

// ZerologLogger implements [dedupe.Logger], backed by a
// github.com/joeycumines/logiface [logiface.Logger] using zerolog as its
// sink.
type ZerologLogger struct {
	logger *logiface.Logger[*izerolog.Event]
}

// NewZerologLogger builds a ZerologLogger writing through zl. Debug messages
// are emitted only if zl's level permits them; this adapter does no
// filtering of its own.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{
		logger: izerolog.L.New(
			izerolog.L.WithZerolog(zl),
			izerolog.L.WithLevel(izerolog.L.LevelTrace()),
		),
	}
}

func (z *ZerologLogger) Debug(msg string, fields ...dedupe.Field) {
	withFields(z.logger.Debug(), fields).Log(msg)
}

func (z *ZerologLogger) Info(msg string, fields ...dedupe.Field) {
	withFields(z.logger.Info(), fields).Log(msg)
}

func (z *ZerologLogger) Warn(msg string, fields ...dedupe.Field) {
	withFields(z.logger.Warning(), fields).Log(msg)
}

func withFields(b *logiface.Builder[*izerolog.Event], fields []dedupe.Field) *logiface.Builder[*izerolog.Event] {
	for _, f := range fields {
		b = b.Any(f.Key, f.Value)
	}
	return b
}
