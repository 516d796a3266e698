package host

import (
	"encoding/json"
	"net/http"

	"github.com/nasa-jpl/picamlab/server"
)

// Request is the JSON body of a command sent over HTTP
type Request struct {
	Cmd Command `json:"cmd"`
	Params
}

// HTTPCommand runs the command in the request body and replies with the Result.
// Library errors are reported in the Result with status 200; only a malformed
// body is an HTTP error.
func HTTPCommand(h *Host) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := Request{}
		err := json.NewDecoder(r.Body).Decode(&req)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		server.WriteJSON(w, h.Do(req.Cmd, req.Params))
	}
}
