package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/medveille/medveille/internal/backup"
)

type BackupHandler struct {
	svc   *backup.Service
	spool *backup.DirStrategy
}

func NewBackupHandler(svc *backup.Service, spool *backup.DirStrategy) *BackupHandler {
	return &BackupHandler{svc: svc, spool: spool}
}

func (h *BackupHandler) Meta(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.svc.Meta())
}

type backupConfigRequest struct {
	Threshold  int  `json:"threshold"`
	AutoImport bool `json:"autoImport"`
}

func (h *BackupHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req backupConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.svc.SetConfig(r.Context(), req.Threshold, req.AutoImport); err != nil {
		http.Error(w, "Error saving backup settings", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(h.svc.Meta())
}

type chooseDirectoryRequest struct {
	Path string `json:"path"`
}

// ChooseDirectory points future backups at a user-selected directory. A
// refused or unwritable directory is an ordinary failure the caller can
// retry with another path.
func (h *BackupHandler) ChooseDirectory(w http.ResponseWriter, r *http.Request) {
	var req chooseDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Missing path", http.StatusBadRequest)
		return
	}
	if err := h.svc.ChooseDirectory(r.Context(), req.Path); err != nil {
		logger.Warn("choose backup directory", "path", req.Path, "err", err)
		http.Error(w, "Directory not usable for backups", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(h.svc.Meta())
}

// Run triggers a manual full export through the strategy chain.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Export(r.Context()); err != nil {
		logger.Error("manual backup", "err", err)
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"backup written"}`)
}

// Download serves the spooled backup file, the fallback for environments
// with no writable backup directory.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.spool.Read(r.Context(), h.svc.Filename())
	if err != nil {
		http.Error(w, "No backup available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.svc.Filename()))
	w.Write(data)
}
