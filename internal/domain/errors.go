package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrFeedClosed       = errors.New("feed closed")
	ErrTradeRejected    = errors.New("trade rejected by venue")
	ErrExitNotConfirmed = errors.New("exit sell not confirmed")
	ErrContextDone      = errors.New("context cancelled")
)
