// Package protocol formats the one-shot HTTP/1.1 request and frames the
// response that comes back in a spool.
package protocol

import (
	"fmt"
	"net/url"
)

// RequestTarget returns the request-target of u: the escaped path, "/"
// when the path is empty, followed by the query when one is present.
func RequestTarget(u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		target += "?" + u.RawQuery
	}
	return target
}

// BuildRequest formats the fixed one-shot GET request. Connection: close
// makes the end of the response coincide with the end of the stream, and
// identity encoding keeps the body byte-for-byte what the server stored.
func BuildRequest(u *url.URL) []byte {
	buf := make([]byte, 0, 128)

	// Request line
	buf = append(buf, fmt.Sprintf("GET %s HTTP/1.1\r\n", RequestTarget(u))...)

	// Headers
	buf = append(buf, fmt.Sprintf("Host: %s\r\n", u.Hostname())...)
	buf = append(buf, "Connection: close\r\n"...)
	buf = append(buf, "Accept-Encoding: identity\r\n"...)

	// Blank line
	return append(buf, "\r\n"...)
}
