package ginmw

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/middleware"
)

// PolicyFunc derives the policy for a request, typically from query parameters.
type PolicyFunc func(c *gin.Context) (jsonrel.Policy, error)

// Options configures NormalizeJSON. A nil Driver uses the current JSON
// driver; a zero ParseOpt uses middleware.DefaultParseOpt.
type Options struct {
	Driver       jsonrel.JSONDriver
	ParseOpt     jsonrel.ParseOpt
	MaxBodyBytes int64
}

// NormalizeJSON decodes and normalizes the request body, stores the Result in
// the request context and answers 400 with an issues payload on failure.
func NormalizeJSON(policy PolicyFunc, opts Options) gin.HandlerFunc {
	opt := opts.ParseOpt
	if isZero(opt) {
		opt = middleware.DefaultParseOpt()
	}
	if opts.MaxBodyBytes > 0 && (opt.MaxBytes == 0 || opt.MaxBytes > opts.MaxBodyBytes) {
		opt.MaxBytes = opts.MaxBodyBytes
	}
	return func(c *gin.Context) {
		p, err := policy(c)
		if err != nil {
			abort(c, err)
			return
		}
		src, err := bodySource(c, opts.Driver, opt)
		if err != nil {
			abort(c, err)
			return
		}
		res, err := jsonrel.NormalizeFrom(c.Request.Context(), src, p, opt)
		if err != nil {
			abort(c, err)
			return
		}
		c.Request = c.Request.WithContext(middleware.ContextWithResult(c.Request.Context(), res))
		c.Next()
	}
}

// bodySource reads a bounded body up front so drivers without offsets still
// honor the size limit.
func bodySource(c *gin.Context, d jsonrel.JSONDriver, opt jsonrel.ParseOpt) (jsonrel.Source, error) {
	if d == nil {
		d = jsonrel.CurrentJSONDriver()
	}
	if opt.MaxBytes <= 0 {
		return d.NewReader(c.Request.Body), nil
	}
	body, err := readLimited(c, opt.MaxBytes)
	if err != nil {
		return nil, err
	}
	return d.NewBytes(body), nil
}

func readLimited(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	body, err := c.GetRawData()
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, jsonrel.AppendIssues(nil, jsonrel.Issue{
				Code: jsonrel.CodeTruncated, Path: "/", Message: "max bytes exceeded", Offset: limit,
				Params: map[string]any{"limit": limit},
			})
		}
		return nil, err
	}
	return body, nil
}

func isZero(o jsonrel.ParseOpt) bool {
	return o.Strictness == (jsonrel.Strictness{}) && o.MaxDepth == 0 && o.MaxBytes == 0 && !o.FailFast && o.IssueSink == nil
}

func abort(c *gin.Context, err error) {
	if iss, ok := jsonrel.AsIssues(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, middleware.ErrorPayload(iss))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// GetResult fetches the Result stored by NormalizeJSON.
func GetResult(c *gin.Context) (jsonrel.Result, bool) {
	return middleware.ResultFromContext(c.Request.Context())
}
