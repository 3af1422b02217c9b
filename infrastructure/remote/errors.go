package remote

import (
	"errors"

	appErrors "concept-tree/pkg/errors"

	"github.com/gorilla/websocket"
)

// feedError carries an error frame pushed by the server
type feedError struct {
	message string
}

func (e *feedError) Error() string {
	return e.message
}

func mapDialError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return appErrors.NewUnavailableError("remote stream").WithCause(err)
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return appErrors.NewUnavailableError("remote stream").WithCause(err)
	}
	return appErrors.NewNetworkError("snapshot feed failed", err)
}
