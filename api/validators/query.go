package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/driveaway-backend/pkg/errors"
)

// Query reads typed query parameters. The first invalid parameter is kept
// and returned by Err; later reads return zero values.
type Query struct {
	values url.Values
	err    error
}

func ReadQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) raw(key string) (string, bool) {
	if q.err != nil {
		return "", false
	}
	v := strings.TrimSpace(q.values.Get(key))
	return v, v != ""
}

func (q *Query) fail(key, msg string, extra map[string]any) {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	q.err = pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// String returns the trimmed value or "".
func (q *Query) String(key string) string {
	v, _ := q.raw(key)
	return v
}

// Int returns def when key is absent and rejects values outside [min, max].
func (q *Query) Int(key string, def, min, max int) int {
	v, ok := q.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	switch {
	case err != nil:
		q.fail(key, "query parameter must be numeric", nil)
		return 0
	case n < min || n > max:
		q.fail(key, "query parameter out of range", map[string]any{"min": min, "max": max})
		return 0
	}
	return n
}

func (q *Query) Bool(key string) bool {
	v, ok := q.raw(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(key, "query parameter must be a boolean", nil)
	}
	return b
}

// UUID returns nil when key is absent.
func (q *Query) UUID(key string) *uuid.UUID {
	v, ok := q.raw(key)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		q.fail(key, "query parameter must be a valid id", nil)
		return nil
	}
	return &id
}

func (q *Query) Err() error {
	return q.err
}

// ParsePathUUID parses a chi URL parameter value.
func ParsePathUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s", name)
	}
	return id, nil
}
