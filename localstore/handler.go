package localstore

import (
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sagarc03/assetgate"
)

// s3Error mirrors the XML error body S3 returns, so S3 tooling can read it.
type s3Error struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if err := xml.NewEncoder(w).Encode(s3Error{Code: code, Message: message, Resource: r.URL.Path}); err != nil {
		slog.Error("failed to encode store error response", "error", err)
	}
}

// Handler returns the router serving presigned object PUT and GET requests
// for this store. Mount it at the path of Config.BaseURL.
func (s *Store) Handler() http.Handler {
	verifier := s.Verifier()

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(s.requireSignature(verifier))
		r.Get("/{bucket}/*", s.handleGet)
		r.Head("/{bucket}/*", s.handleGet)
		r.Put("/{bucket}/*", s.handlePut)
	})

	return r
}

// requireSignature rejects requests whose presigned query does not verify.
func (s *Store) requireSignature(verifier *assetgate.SignatureVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := r.Method
			if method == http.MethodHead {
				// HEAD is authorized by a GET capability
				r2 := r.Clone(r.Context())
				r2.Method = http.MethodGet
				r = r2
			}

			if err := verifier.VerifyRequest(r); err != nil {
				slog.DebugContext(r.Context(), "rejected store request", "path", r.URL.Path, "error", err)
				writeS3Error(w, r, http.StatusForbidden, "AccessDenied", err.Error())
				return
			}

			r.Method = method
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Store) objectKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	if chi.URLParam(r, "bucket") != s.bucket {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return "", false
	}

	key := chi.URLParam(r, "*")
	if !assetgate.IsValidObjectKey(key) {
		writeS3Error(w, r, http.StatusBadRequest, "InvalidArgument", "Invalid object key")
		return "", false
	}
	return key, true
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := s.objectKey(w, r)
	if !ok {
		return
	}

	f, err := s.files.open(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey", "The specified key does not exist")
			return
		}
		slog.ErrorContext(r.Context(), "open object", "key", key, "error", err)
		writeS3Error(w, r, http.StatusInternalServerError, "InternalError", "Internal server error")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeS3Error(w, r, http.StatusInternalServerError, "InternalError", "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, key, info.ModTime(), f)
}

// handlePut stores the request body as the object. A new write starts the
// object over, so any tags from a previous upload are dropped.
func (s *Store) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := s.objectKey(w, r)
	if !ok {
		return
	}

	res, err := s.files.write(r.Context(), key, r.Body)
	if err != nil {
		slog.ErrorContext(r.Context(), "write object", "key", key, "error", err)
		writeS3Error(w, r, http.StatusInternalServerError, "InternalError", "Internal server error")
		return
	}

	if err := s.tags.Clear(r.Context(), key); err != nil {
		slog.ErrorContext(r.Context(), "clear object tags", "key", key, "error", err)
		writeS3Error(w, r, http.StatusInternalServerError, "InternalError", "Internal server error")
		return
	}

	slog.DebugContext(r.Context(), "object stored", "key", key, "bytes", res.size)

	w.Header().Set("ETag", `"`+res.etag+`"`)
	w.WriteHeader(http.StatusOK)
}
