package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/medveille/medveille/internal/store"
)

// TransferHandler exposes the backup document for manual export and restore,
// plain and passphrase-encrypted. Broken documents and wrong passphrases
// come back as a 400, never as a crash or a partial import.
type TransferHandler struct {
	store *store.Store
}

func NewTransferHandler(s *store.Store) *TransferHandler {
	return &TransferHandler{store: s}
}

func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ExportAll(r.Context())
	if err != nil {
		http.Error(w, "Error exporting data", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="medveille-backup.json"`)
	w.Write(data)
}

func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}
	if !h.store.ImportAll(r.Context(), data) {
		http.Error(w, "Import rejected: broken document", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"imported"}`)
}

type encryptedExportRequest struct {
	Passphrase string `json:"passphrase"`
}

type encryptedExportResponse struct {
	Blob string `json:"blob"`
}

type encryptedImportRequest struct {
	Passphrase string `json:"passphrase"`
	Blob       string `json:"blob"`
}

func (h *TransferHandler) ExportEncrypted(w http.ResponseWriter, r *http.Request) {
	var req encryptedExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passphrase == "" {
		http.Error(w, "Missing passphrase", http.StatusBadRequest)
		return
	}
	blob, err := h.store.ExportEncrypted(r.Context(), req.Passphrase)
	if err != nil {
		http.Error(w, "Error exporting data", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(encryptedExportResponse{Blob: blob})
}

func (h *TransferHandler) ImportEncrypted(w http.ResponseWriter, r *http.Request) {
	var req encryptedImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passphrase == "" || req.Blob == "" {
		http.Error(w, "Missing passphrase or blob", http.StatusBadRequest)
		return
	}
	if !h.store.ImportEncrypted(r.Context(), req.Passphrase, req.Blob) {
		http.Error(w, "Import rejected: wrong passphrase or broken file", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"imported"}`)
}
