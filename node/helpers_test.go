package node

import (
	"io"

	"github.com/skde-project/dkg-node/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewLogger(io.Discard, logger.ErrorLevel)
}
