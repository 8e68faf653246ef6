package shared

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes the request body into the given value.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}
