package websocket

import (
	"strconv"
	"unsafe"
)

// Header is a single HTTP header field. Name and Value are views over the
// buffer they were decoded from (or, for caller-built headers passed into
// EncodeRequest/EncodeResponse, over whatever storage the caller chose).
type Header struct {
	Name  string
	Value string
}

// HTTPRequest is a decoded HTTP/1.1 request line plus headers, used only
// for the server-side handshake (spec.md §4.2).
type HTTPRequest struct {
	Method  string
	Path    string
	Minor   int
	Headers []Header
}

// HTTPResponse is a decoded HTTP/1.1 status line plus headers, used only
// for the client-side handshake.
type HTTPResponse struct {
	StatusCode int
	Reason     string
	Minor      int
	Headers    []Header
}

// Get returns the value of the first header matching name
// (case-insensitive), and whether it was found.
func (r HTTPRequest) Get(name string) (string, bool) {
	return getHeader(r.Headers, name)
}

// Get returns the value of the first header matching name
// (case-insensitive), and whether it was found.
func (r HTTPResponse) Get(name string) (string, bool) {
	return getHeader(r.Headers, name)
}

func getHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if equalFoldASCII(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// bytesToString views b as a string without copying. b must not be
// mutated for as long as the returned string is in use.
func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// containsTokenFold reports whether the comma-separated header value v
// contains token, ignoring case and surrounding whitespace around each
// comma-separated element (spec.md §4.5/§6: used for Upgrade/Connection).
func containsTokenFold(v, token string) bool {
	for len(v) > 0 {
		var part string
		if i := indexByte(v, ','); i >= 0 {
			part, v = v[:i], v[i+1:]
		} else {
			part, v = v, ""
		}
		if equalFoldASCII(trimASCIISpace(part), token) {
			return true
		}
	}
	return false
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func trimASCIISpace(s string) string {
	start := 0
	for start < len(s) && isASCIISpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isASCIISpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// findHeaderEnd locates the blank line that terminates the header block
// ("\r\n\r\n"), returning its start index or -1 if not yet present.
func findHeaderEnd(src []byte) int {
	for i := 0; i+3 < len(src); i++ {
		if src[i] == '\r' && src[i+1] == '\n' && src[i+2] == '\r' && src[i+3] == '\n' {
			return i
		}
	}
	return -1
}

// parseHeaderLines walks the header block (everything between the first line's
// terminator and the final blank line) one "\r\n"-terminated line at a
// time, appending a Header per line into headers[:0]. headers' capacity is
// the static max-header-count N of spec.md §4.2.
func parseHeaderLines(block []byte, headers []Header) ([]Header, error) {
	out := headers[:0]
	for len(block) > 0 {
		i := indexCRLF(block)
		if i < 0 {
			return nil, ErrMalformedHTTP
		}
		line := block[:i]
		block = block[i+2:]

		colon := -1
		for j := 0; j < len(line); j++ {
			if line[j] == ':' {
				colon = j
				break
			}
		}
		if colon < 0 {
			return nil, ErrMalformedHTTP
		}

		if len(out) == cap(out) {
			return nil, ErrTooManyHeaders
		}
		out = append(out, Header{
			Name:  bytesToString(line[:colon]),
			Value: trimASCIISpace(bytesToString(line[colon+1:])),
		})
	}
	return out, nil
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// DecodeRequest decodes an HTTP/1.1 request line and headers from the
// prefix of src. It returns (HTTPRequest{}, 0, nil) when src does not yet
// contain a complete request (caller should read more and retry). headers
// is working storage reused across the call: its capacity is the static
// max-header count; ErrTooManyHeaders is returned if the request carries
// more fields than that.
func DecodeRequest(src []byte, headers []Header) (HTTPRequest, int, error) {
	end := findHeaderEnd(src)
	if end < 0 {
		return HTTPRequest{}, 0, nil
	}

	lineEnd := indexCRLF(src)
	if lineEnd < 0 {
		return HTTPRequest{}, 0, ErrMalformedHTTP
	}
	requestLine := bytesToString(src[:lineEnd])

	method, rest, ok := cutASCII(requestLine, ' ')
	if !ok {
		return HTTPRequest{}, 0, ErrMalformedHTTP
	}
	path, versionStr, ok := cutASCII(rest, ' ')
	if !ok {
		return HTTPRequest{}, 0, ErrMalformedHTTP
	}
	minor, ok := parseHTTPVersion(versionStr)
	if !ok {
		return HTTPRequest{}, 0, ErrMalformedHTTP
	}

	hdrs, err := parseHeaderLines(src[lineEnd+2:end+2], headers)
	if err != nil {
		return HTTPRequest{}, 0, err
	}

	return HTTPRequest{Method: method, Path: path, Minor: minor, Headers: hdrs}, end + 4, nil
}

// DecodeResponse decodes an HTTP/1.1 status line and headers from the
// prefix of src, with the same incomplete/ErrTooManyHeaders semantics as
// DecodeRequest.
func DecodeResponse(src []byte, headers []Header) (HTTPResponse, int, error) {
	end := findHeaderEnd(src)
	if end < 0 {
		return HTTPResponse{}, 0, nil
	}

	lineEnd := indexCRLF(src)
	if lineEnd < 0 {
		return HTTPResponse{}, 0, ErrMalformedHTTP
	}
	statusLine := bytesToString(src[:lineEnd])

	versionStr, rest, ok := cutASCII(statusLine, ' ')
	if !ok {
		return HTTPResponse{}, 0, ErrMalformedHTTP
	}
	minor, ok := parseHTTPVersion(versionStr)
	if !ok {
		return HTTPResponse{}, 0, ErrMalformedHTTP
	}
	codeStr, reason, ok := cutASCII(rest, ' ')
	if !ok {
		codeStr, reason = rest, ""
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return HTTPResponse{}, 0, ErrMalformedHTTP
	}

	hdrs, err := parseHeaderLines(src[lineEnd+2:end+2], headers)
	if err != nil {
		return HTTPResponse{}, 0, err
	}

	return HTTPResponse{StatusCode: code, Reason: reason, Minor: minor, Headers: hdrs}, end + 4, nil
}

func cutASCII(s string, sep byte) (before, after string, found bool) {
	i := indexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// parseHTTPVersion parses "HTTP/1.x" and returns x.
func parseHTTPVersion(s string) (minor int, ok bool) {
	const prefix = "HTTP/1."
	if len(s) != len(prefix)+1 || s[:len(prefix)] != prefix {
		return 0, false
	}
	d := s[len(prefix)]
	if d < '0' || d > '9' {
		return 0, false
	}
	return int(d - '0'), true
}

// EncodeRequest writes "METHOD SP PATH SP HTTP/1.1\r\n", each header as
// "name: value\r\n", then a terminating "\r\n", into dst.
func EncodeRequest(dst []byte, method, path string, headers []Header) (int, error) {
	n := 0
	var ok bool
	if n, ok = appendAll(dst, n, method, " ", path, " HTTP/1.1\r\n"); !ok {
		return 0, ErrBufferTooSmall
	}
	return encodeHeaderBlock(dst, n, headers)
}

// EncodeResponse writes "HTTP/1.1 SP CODE SP STATUS\r\n", each header as
// "name: value\r\n", then a terminating "\r\n", into dst.
func EncodeResponse(dst []byte, code int, status string, headers []Header) (int, error) {
	n := 0
	var ok bool
	if n, ok = appendAll(dst, n, "HTTP/1.1 ", strconv.Itoa(code), " ", status, "\r\n"); !ok {
		return 0, ErrBufferTooSmall
	}
	return encodeHeaderBlock(dst, n, headers)
}

func encodeHeaderBlock(dst []byte, n int, headers []Header) (int, error) {
	for _, h := range headers {
		var ok bool
		if n, ok = appendAll(dst, n, h.Name, ": ", h.Value, "\r\n"); !ok {
			return 0, ErrBufferTooSmall
		}
	}
	if n+2 > len(dst) {
		return 0, ErrBufferTooSmall
	}
	dst[n], dst[n+1] = '\r', '\n'
	return n + 2, nil
}

func appendAll(dst []byte, n int, parts ...string) (int, bool) {
	for _, p := range parts {
		if n+len(p) > len(dst) {
			return n, false
		}
		copy(dst[n:], p)
		n += len(p)
	}
	return n, true
}
