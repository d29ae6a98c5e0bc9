package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"cabinrent/internal/database"
	"cabinrent/internal/models"
	"cabinrent/internal/service"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// fail writes err with the status it maps to. Internal errors are logged and hidden.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).
			Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, models.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate),
		errors.Is(err, database.ErrHasReferences),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrNotPending),
		errors.Is(err, database.ErrLastAdmin):
		return http.StatusConflict
	case errors.Is(err, service.ErrCapacity),
		errors.Is(err, service.ErrStayTooLong),
		errors.Is(err, service.ErrTooFarAhead),
		errors.Is(err, service.ErrPastDate),
		errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrSelfDelete),
		errors.Is(err, database.ErrNotEditable),
		errors.Is(err, database.ErrGuestOnSite),
		errors.Is(err, database.ErrOverpayment),
		errors.Is(err, database.ErrReservationCancelled),
		errors.Is(err, database.ErrCabinInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs the struct validation tags.
// It writes the 400 response itself and reports whether the handler may continue.
func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return s.decodeBody(w, r, dst, false)
}

// decodeOptional is decode for endpoints where the body may be omitted.
func (s *HTTPServer) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	return s.decodeBody(w, r, dst, true)
}

func (s *HTTPServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !(optional && errors.Is(err, io.EOF)) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// idParam parses the {id} path segment, writing a 400 when it is malformed.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

// query reads typed query parameters and keeps the first parse error.
type query struct {
	values map[string][]string
	err    error
}

func newQuery(r *http.Request) *query {
	return &query{values: r.URL.Query()}
}

func (q *query) str(name string) string {
	if v, ok := q.values[name]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *query) date(name string) models.Date {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return models.Date{}
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		q.err = fmt.Errorf("%s: %w", name, err)
	}
	return d
}

func (q *query) number(name string) int {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.err = fmt.Errorf("%s: must be an integer", name)
	}
	return n
}

func (q *query) id(name string) int64 {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		q.err = fmt.Errorf("%s: must be a positive integer", name)
	}
	return n
}

// ok writes a 400 for the first bad parameter.
func (q *query) ok(w http.ResponseWriter) bool {
	if q.err != nil {
		writeError(w, http.StatusBadRequest, q.err.Error())
		return false
	}
	return true
}
