package middleware

import (
	"bytes"
	"net/http"
)

// recorder wraps a ResponseWriter to observe what the handler wrote.
// When capture is set the body is also buffered for replay.
type recorder struct {
	http.ResponseWriter
	status  int
	written int
	capture bool
	body    bytes.Buffer
}

func newRecorder(w http.ResponseWriter, capture bool) *recorder {
	if rec, ok := w.(*recorder); ok && !capture {
		return rec
	}
	return &recorder{ResponseWriter: w, capture: capture}
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.capture {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Status reports the response code, defaulting to 200 when the handler wrote nothing explicit.
func (r *recorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) wroteHeader() bool { return r.status != 0 }

func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
