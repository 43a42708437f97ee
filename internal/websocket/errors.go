package websocket

import "errors"

// ErrMalformed is returned by ReadRequest for frames that are not JSON objects.
var ErrMalformed = errors.New("websocket: malformed message")
