package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baechuer/meeting-machine/internal/domain"
)

var errTrailingData = errors.New("body holds more than one JSON value")

// DecodeJSON reads exactly one JSON value from the body into dst. Unknown
// fields pass; anything after the value other than whitespace does not.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}

	switch err := dec.Decode(new(json.RawMessage)); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return domain.ErrInvalidJSON(err)
	default:
		return domain.ErrInvalidJSON(errTrailingData)
	}
}
