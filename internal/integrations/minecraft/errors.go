package minecraft

import "errors"

// ErrProtocol is returned when a ping completes without a status response.
var ErrProtocol = errors.New("minecraft: protocol error")
