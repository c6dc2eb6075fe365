package api

import (
	"github.com/gorilla/mux"
	"github.com/medveille/medveille/internal/backup"
	"github.com/medveille/medveille/internal/config"
	"github.com/medveille/medveille/internal/session"
	"github.com/medveille/medveille/internal/store"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, st *store.Store, guard *session.Guard, svc *backup.Service, spool *backup.DirStrategy) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(guard, cfg.JWTSecret, cfg.IdleTimeout)
	workersHandler := NewWorkersHandler(st)
	examsHandler := NewExamsHandler(st)
	refDataHandler := NewRefDataHandler(st)
	waterHandler := NewWaterHandler(st)
	dashboardHandler := NewDashboardHandler(st)
	transferHandler := NewTransferHandler(st)
	backupHandler := NewBackupHandler(svc, spool)
	settingsHandler := NewSettingsHandler(st)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/unlock", authHandler.Unlock).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(SessionMiddleware(cfg.JWTSecret, guard))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/lock", authHandler.Lock).Methods("POST")
	authV1.HandleFunc("/pin", authHandler.ChangePIN).Methods("POST")

	// Workers and exams
	apiV1.HandleFunc("/workers", workersHandler.List).Methods("GET")
	apiV1.HandleFunc("/workers", workersHandler.Save).Methods("POST")
	apiV1.HandleFunc("/workers/{id}", workersHandler.Delete).Methods("DELETE")
	apiV1.HandleFunc("/workers/{id}/recalculate", workersHandler.Recalculate).Methods("POST")
	apiV1.HandleFunc("/exams", examsHandler.List).Methods("GET")
	apiV1.HandleFunc("/exams", examsHandler.Save).Methods("POST")
	apiV1.HandleFunc("/exams/{id}", examsHandler.Delete).Methods("DELETE")

	// Reference data
	apiV1.HandleFunc("/departments", refDataHandler.ListDepartments).Methods("GET")
	apiV1.HandleFunc("/departments", refDataHandler.SaveDepartment).Methods("POST")
	apiV1.HandleFunc("/departments/{id}", refDataHandler.DeleteDepartment).Methods("DELETE")
	apiV1.HandleFunc("/workplaces", refDataHandler.ListWorkplaces).Methods("GET")
	apiV1.HandleFunc("/workplaces", refDataHandler.SaveWorkplace).Methods("POST")
	apiV1.HandleFunc("/workplaces/{id}", refDataHandler.DeleteWorkplace).Methods("DELETE")
	apiV1.HandleFunc("/water/departments", refDataHandler.ListWaterDepartments).Methods("GET")
	apiV1.HandleFunc("/water/departments", refDataHandler.SaveWaterDepartment).Methods("POST")
	apiV1.HandleFunc("/water/departments/{id}", refDataHandler.DeleteWaterDepartment).Methods("DELETE")

	// Water analyses
	apiV1.HandleFunc("/water/analyses", waterHandler.ListAnalyses).Methods("GET")
	apiV1.HandleFunc("/water/analyses", waterHandler.SaveAnalysis).Methods("POST")
	apiV1.HandleFunc("/water/analyses/{id}", waterHandler.DeleteAnalysis).Methods("DELETE")
	apiV1.HandleFunc("/water/overview", waterHandler.Overview).Methods("GET")

	// Dashboard
	apiV1.HandleFunc("/dashboard", dashboardHandler.Stats).Methods("GET")

	// Export / import
	apiV1.HandleFunc("/export", transferHandler.Export).Methods("GET")
	apiV1.HandleFunc("/import", transferHandler.Import).Methods("POST")
	apiV1.HandleFunc("/export/encrypted", transferHandler.ExportEncrypted).Methods("POST")
	apiV1.HandleFunc("/import/encrypted", transferHandler.ImportEncrypted).Methods("POST")

	// Backup service
	apiV1.HandleFunc("/backup/meta", backupHandler.Meta).Methods("GET")
	apiV1.HandleFunc("/backup/config", backupHandler.SetConfig).Methods("POST")
	apiV1.HandleFunc("/backup/directory", backupHandler.ChooseDirectory).Methods("POST")
	apiV1.HandleFunc("/backup/run", backupHandler.Run).Methods("POST")
	apiV1.HandleFunc("/backup/download", backupHandler.Download).Methods("GET")

	// Settings and maintenance
	apiV1.HandleFunc("/settings", settingsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/settings", settingsHandler.Save).Methods("POST")
	apiV1.HandleFunc("/maintenance/cleanup-orphans", settingsHandler.CleanupOrphans).Methods("POST")

	return r
}
