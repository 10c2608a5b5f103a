package errors

import "errors"

var (
	// ErrTaskAborted marks a task that was cancelled, or whose ShouldExecute
	// check failed, before it started running.
	ErrTaskAborted = errors.New("task aborted before execution")

	// ErrInvalidTaskID marks an enqueue with an empty task id.
	ErrInvalidTaskID = errors.New("invalid task id")

	ErrTileNotFound        = errors.New("tile not found")
	ErrUpstreamError       = errors.New("upstream tile server error")
	ErrUpstreamTransient   = errors.New("transient upstream tile server error")
	ErrBadTileRequest      = errors.New("bad tile request")
	RatelimitExceededError = errors.New("Ratelimit exceeded")
)
