package utils

import (
	"io"

	"github.com/weezy20/zv/internal/logger"
)

func Try(f func() error) {
	if err := f(); err != nil {
		logger.Debug("deferred cleanup failed: %v", err)
	}
}

func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Debug("close failed: %v", err)
	}
}
