package ratelimit

import "net/http"

// Class groups routes that share a bucket.
type Class string

const (
	ClassExempt  Class = "exempt"
	ClassPaid    Class = "paid"    // model calls, charged to the spend ledger
	ClassCompile Class = "compile" // toolchain runs
	ClassWrite   Class = "write"
	ClassRead    Class = "read"
)

var routeClasses = map[string]Class{
	"POST /update":        ClassPaid,
	"POST /update/stream": ClassPaid,
	"POST /preview":       ClassCompile,
	"POST /save":          ClassWrite,
	"POST /commit":        ClassWrite,
	"POST /stop":          ClassWrite,
}

// Classify maps a request to its class. Health checks and CORS preflights
// are exempt; unlisted routes are reads for GET and HEAD and writes otherwise.
func Classify(method, path string) Class {
	if method == http.MethodOptions || path == "/health" {
		return ClassExempt
	}
	if c, ok := routeClasses[method+" "+path]; ok {
		return c
	}
	if method == http.MethodGet || method == http.MethodHead {
		return ClassRead
	}
	return ClassWrite
}
