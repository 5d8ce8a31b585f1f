package api

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

const mimeCBOR = "application/cbor"

// maxBodyBytes caps request bodies; seeds are short.
const maxBodyBytes = 1 << 20

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return writeValue(c, status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeValue encodes v as CBOR when the client asks for it and as JSON
// otherwise.
func writeValue(c *echo.Context, status int, v any) error {
	if acceptsCBOR(c.Request()) {
		b, err := cbor.Marshal(v)
		if err != nil {
			return err
		}
		return c.Blob(status, mimeCBOR, b)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, b)
}

func acceptsCBOR(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get(echo.HeaderAccept), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == mimeCBOR {
			return true
		}
	}
	return false
}

// decodeBody reads a JSON or CBOR body according to its Content-Type.
func decodeBody[T any](r *http.Request) (T, error) {
	var out T
	body := io.LimitReader(r.Body, maxBodyBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get(echo.HeaderContentType))
	switch mt {
	case mimeCBOR:
		if err := cbor.NewDecoder(body).Decode(&out); err != nil {
			return out, fmt.Errorf("decode cbor body: %w", err)
		}
		return out, nil
	case "", echo.MIMEApplicationJSON:
		return decodeJSON[T](body)
	default:
		return out, fmt.Errorf("unsupported content type %q", mt)
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode json body: %w", err)
	}
	return out, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func newSessionID() string {
	return "gen_" + uuid.NewString()
}
