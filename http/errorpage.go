package http

import "net/http"

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "not_found", "No route for "+r.Method+" "+r.URL.Path)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method "+r.Method+" not allowed")
}
