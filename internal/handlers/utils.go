package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/sirupsen/logrus"
)

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch game.KindOf(err) {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindInvalidState, game.KindTransferConflict, game.KindAlreadyOwned:
		return http.StatusConflict
	case game.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case game.KindMonopolyRequired, game.KindUnevenBuild, game.KindInvalidOffer:
		return http.StatusUnprocessableEntity
	}
	var be badRequest
	if errors.As(err, &be) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// badRequest marks a malformed client payload.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("failed to encode response: %v", err)
	}
}

// writeError writes {"error": kind, "message": msg} with the mapped status.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]string{"message": err.Error()}
	if k := game.KindOf(err); k != "" {
		body["error"] = string(k)
	} else if status == http.StatusBadRequest {
		body["error"] = "bad_request"
	} else {
		body["error"] = "internal"
		body["message"] = "internal server error"
	}
	writeJSON(w, status, body)
}

// decodeBody decodes a JSON body into out. An empty body leaves out untouched.
func decodeBody(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(out)
	if err != nil && err.Error() != "EOF" {
		return badRequestf("bad request payload: %v", err)
	}
	return nil
}

func intField(payload map[string]interface{}, key string) (int, error) {
	v, ok := payload[key]
	if !ok {
		return 0, badRequestf("missing %s", key)
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, badRequestf("%s must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, badRequestf("%s must be an integer", key)
		}
		return int(i), nil
	}
	return 0, badRequestf("%s must be an integer", key)
}

func optionalInt(payload map[string]interface{}, key string) (int, error) {
	if _, ok := payload[key]; !ok {
		return 0, nil
	}
	return intField(payload, key)
}

func intList(payload map[string]interface{}, key string) ([]int, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, badRequestf("%s must be a list of integers", key)
	}
	out := make([]int, 0, len(raw))
	for i := range raw {
		n, err := intField(map[string]interface{}{key: raw[i]}, key)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func uuidField(payload map[string]interface{}, key string) (uuid.UUID, error) {
	s, ok := payload[key].(string)
	if !ok {
		return uuid.Nil, badRequestf("missing %s", key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, badRequestf("invalid %s", key)
	}
	return id, nil
}
