package cache

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Middleware считает валидационный токен (ETag) по телу ответа и
// отвечает 304, если клиент прислал совпадающий If-None-Match.
// Для путей задач и тегов в дайджест подмешивается ChangeClock:
// валидность кэша привязана к последней мутации, а не к самой записи.
func Middleware(clock *Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				rec.flush()
				return
			}

			h := sha256.New()
			h.Write(rec.buf.Bytes())
			if clocked(r.URL.Path) {
				h.Write([]byte(strconv.FormatInt(clock.Value(), 10)))
			}
			etag := fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum(nil)))

			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.WriteHeader(rec.status)
			w.Write(rec.buf.Bytes())
		})
	}
}

func clocked(path string) bool {
	return strings.HasPrefix(path, "/api/tasks") || strings.HasPrefix(path, "/api/tags")
}

// recorder буферизует ответ, чтобы посчитать дайджест до отправки
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
}

func (r *recorder) Write(b []byte) (int, error) {
	return r.buf.Write(b)
}

func (r *recorder) flush() {
	r.ResponseWriter.WriteHeader(r.status)
	r.ResponseWriter.Write(r.buf.Bytes())
}
