package neo4j

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/log"
	"github.com/rs/zerolog"
)

// boltLogger forwards Bolt driver logs to zerolog.
type boltLogger struct {
	zlog zerolog.Logger
}

func newBoltLogger(l zerolog.Logger) *boltLogger {
	return &boltLogger{zlog: l.With().Str("component", "bolt").Logger()}
}

func (l *boltLogger) Error(name, id string, err error) {
	l.zlog.Error().Str("name", name).Str("id", id).Err(err).Send()
}

func (l *boltLogger) Warnf(name, id, msg string, args ...any) {
	l.zlog.Warn().Str("name", name).Str("id", id).Msg(fmt.Sprintf(msg, args...))
}

func (l *boltLogger) Infof(name, id, msg string, args ...any) {
	l.zlog.Info().Str("name", name).Str("id", id).Msg(fmt.Sprintf(msg, args...))
}

func (l *boltLogger) Debugf(name, id, msg string, args ...any) {
	l.zlog.Debug().Str("name", name).Str("id", id).Msg(fmt.Sprintf(msg, args...))
}

var _ log.Logger = (*boltLogger)(nil)
