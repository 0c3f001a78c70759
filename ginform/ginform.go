// Package ginform wires formtree decoding and validation into gin handlers.
package ginform

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomasbasham/formtree"
)

// ctxKey is a typed context key for values stored on the request context.
type ctxKey struct{ name string }

var (
	valuesKey    = ctxKey{"values"}
	validatedKey = ctxKey{"validated"}
)

var errNotValidated = errors.New("ginform: no validated data on request")

// Options configures the middleware.
type Options struct {
	Decode formtree.DecodeOptions
	// FailureStatus is the status written when validation fails. It defaults
	// to 422 Unprocessable Entity.
	FailureStatus int
}

func (o Options) failureStatus() int {
	if o.FailureStatus == 0 {
		return http.StatusUnprocessableEntity
	}
	return o.FailureStatus
}

// ErrorPayload shapes an error tree and the received values for a JSON
// response.
func ErrorPayload(errs formtree.ErrorTree, received formtree.Value) map[string]any {
	return map[string]any{"errors": errs, "receivedValues": received}
}

// Bind decodes the submitted values and stores them for [Values]. A request
// that cannot be decoded is answered with 400 and the decode error.
func Bind(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := decode(c, opts); !ok {
			return
		}
		c.Next()
	}
}

// Validate decodes the submitted values, or reuses those stored by [Bind],
// and runs val over them. Failures are answered with the error tree and the
// received values; successes are stored for [Validated].
func Validate(val formtree.Validator, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := decode(c, opts)
		if !ok {
			return
		}

		res, err := formtree.ValidateValue(c.Request.Context(), v, val)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !res.Valid() {
			c.AbortWithStatusJSON(opts.failureStatus(), ErrorPayload(res.Errors, res.Received))
			return
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), validatedKey, res))
		c.Next()
	}
}

// decode returns the values stored on the request, decoding and storing them
// first when absent. It aborts c and returns false on failure.
func decode(c *gin.Context, opts Options) (formtree.Value, bool) {
	if v, ok := Values(c); ok {
		return v, true
	}
	v, err := formtree.ParseRequest(c.Request, opts.Decode)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return formtree.Value{}, false
	}
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), valuesKey, v))
	return v, true
}

// Values returns the values decoded by [Bind] or [Validate].
func Values(c *gin.Context) (formtree.Value, bool) {
	v, ok := c.Request.Context().Value(valuesKey).(formtree.Value)
	return v, ok
}

// Validated returns the outcome stored by [Validate] for a valid request.
func Validated(c *gin.Context) (formtree.Validated, bool) {
	v, ok := c.Request.Context().Value(validatedKey).(formtree.Validated)
	return v, ok
}

// Data binds the validated data stored by [Validate] into a T. It fails when
// no valid outcome is stored on the request.
func Data[T any](c *gin.Context) (T, error) {
	var out T
	res, ok := Validated(c)
	if !ok {
		return out, errNotValidated
	}
	err := res.Bind(&out)
	return out, err
}
