package mycontext

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

// CtxTraceContext is a context key for the cloud trace (used by mylog)
type CtxTraceContext struct{}

// CtxRequestID is a context key for the id that correlates all log lines of one request
type CtxRequestID struct{}

func ContextFromHTTPRequest(r *http.Request) context.Context {
	var trace string

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	traceContext := r.Header.Get("X-Cloud-Trace-Context")
	traceParts := strings.Split(traceContext, "/")

	if len(traceParts) > 0 && len(traceParts[0]) > 0 {
		trace = fmt.Sprintf("projects/%s/traces/%s", projectID, traceParts[0])
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx := context.WithValue(r.Context(), CtxTraceContext{}, trace)
	ctx = context.WithValue(ctx, CtxRequestID{}, requestID)

	return ctx
}

func Trace(c context.Context) string {
	if c == nil {
		return ""
	}
	trace, _ := c.Value(CtxTraceContext{}).(string)
	return trace
}

func RequestID(c context.Context) string {
	if c == nil {
		return ""
	}
	id, _ := c.Value(CtxRequestID{}).(string)
	return id
}
