package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vladosShikos/losb-back/internal/domain"
)

const maxBodyBytes = 16 << 10

// DecodeJSON decodes a JSON request body into dst.
// It rejects unknown fields, oversized bodies and multiple JSON values.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}

	// Disallow trailing data: {}{}
	if err := dec.Decode(&struct{}{}); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}

	return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
}
