package async

import "errors"

var ErrQueueClosed = errors.New("queue closed")
