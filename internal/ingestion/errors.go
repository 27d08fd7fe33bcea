package ingestion

import (
	"errors"
	"fmt"
)

var (
	ErrDecode           = errors.New("decode error")
	ErrInvalidTopic     = fmt.Errorf("%w: invalid topic", ErrDecode)
	ErrDeviceNotFound   = errors.New("device not found")
	ErrSinkWrite        = errors.New("sink write error")
	ErrQueueFull        = errors.New("reading queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrDrainTimeout     = errors.New("drain timed out")
)
