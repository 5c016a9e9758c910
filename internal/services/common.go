package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-social-chat/internal/realtime"
	"github.com/tbourn/go-social-chat/internal/repo"
)

// publish emits a change event after a committed write. A nil publisher or
// an encoding failure only costs realtime freshness, never the write.
func publish(ctx context.Context, pub realtime.Publisher, table string, op realtime.Op, row any) {
	if pub == nil {
		return
	}
	e, err := realtime.NewEvent(table, op, row)
	if err != nil {
		logFrom(ctx).Warn().Err(err).Str("table", table).Msg("encode change event")
		return
	}
	pub.Publish(ctx, e)
}

// logFrom returns the logger carried by ctx, or the global logger.
func logFrom(ctx context.Context) *zerolog.Logger {
	if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
		return lg
	}
	return &log.Logger
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
