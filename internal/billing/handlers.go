package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/billed/internal/bill"
)

// maxUploadSize bounds receipt uploads
const maxUploadSize = int64(20 << 20) // 20MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var verr *bill.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBillExists):
		return http.StatusConflict
	case errors.Is(err, ErrScannerDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes it with the matching status. Internal
// errors are not echoed to the client.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, "Internal server error", code)
		return
	}
	writeError(w, err.Error(), code)
}

// contentTypeFor fills in a missing part content type from the extension
func contentTypeFor(filename, declared string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// readUpload reads the "file" part of a multipart request
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "File is too large. Maximum size is 20MB."
		}
		writeError(w, msg, http.StatusBadRequest)
		return "", nil, "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return "", nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return "", nil, "", false
	}

	return header.Filename, data, contentTypeFor(header.Filename, header.Header.Get("Content-Type")), true
}

// handleListBills returns the bills of ?email=, or all bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListBills(r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, "Error listing bills", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCreateBill creates a bill from a JSON body
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var b bill.Bill
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.service.CreateBill(&b)
	if err != nil {
		writeServiceError(w, "Error creating bill", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetBill(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting bill", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleReviewBill applies an admin review
func (s *Server) handleReviewBill(w http.ResponseWriter, r *http.Request) {
	var review Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.service.ReviewBill(r.PathValue("id"), review)
	if err != nil {
		writeServiceError(w, "Error reviewing bill", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleDeleteBill deletes a bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBill(r.PathValue("id")); err != nil {
		writeServiceError(w, "Error deleting bill", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadReceipt stores a receipt from a multipart form with "file" and "email"
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := s.service.UploadReceipt(filename, data, contentType, r.FormValue("email"))
	if err != nil {
		writeServiceError(w, "Error uploading receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleGetReceiptFile returns the bytes of an uploaded receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("key"))
	if err != nil {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleScanReceipt suggests bill fields for an uploaded receipt image
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}

	suggestion, err := s.service.ScanReceipt(r.Context(), filename, data, contentType)
	if err != nil {
		writeServiceError(w, "Error scanning receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// handleHealth reports liveness; it skips auth for load balancers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
