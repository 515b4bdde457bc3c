package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/phonetica/phonauth"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidBody     = &phonauth.Error{Kind: phonauth.KindValidation, Message: "Invalid request body"}
	errTimezoneMissing = &phonauth.Error{Kind: phonauth.KindValidation, Message: "X-Timezone header is required"}
)

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return errInvalidBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errInvalidBody
		}
		return &phonauth.Error{Kind: phonauth.KindValidation, Message: errInvalidBody.Message, Err: err}
	}
	return nil
}

// timezoneHeader returns the caller's X-Timezone header.
func timezoneHeader(r *http.Request) (string, error) {
	tz := strings.TrimSpace(r.Header.Get("X-Timezone"))
	if tz == "" {
		return "", errTimezoneMissing
	}
	return tz, nil
}
