package http

import (
	"net/http"

	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router              *mux.Router
	authHandler         *handler.AuthHandler
	profileHandler      *handler.ProfileHandler
	directoryHandler    *handler.DirectoryHandler
	appointmentHandler  *handler.AppointmentHandler
	familyMemberHandler *handler.FamilyMemberHandler
	verificationHandler *handler.VerificationHandler
	auditLogHandler     *handler.AuditLogHandler
	authMiddleware      *middleware.AuthMiddleware
	corsMiddleware      *middleware.CORSMiddleware
}

func NewRouter(
	authHandler *handler.AuthHandler,
	profileHandler *handler.ProfileHandler,
	directoryHandler *handler.DirectoryHandler,
	appointmentHandler *handler.AppointmentHandler,
	familyMemberHandler *handler.FamilyMemberHandler,
	verificationHandler *handler.VerificationHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		authHandler:         authHandler,
		profileHandler:      profileHandler,
		directoryHandler:    directoryHandler,
		appointmentHandler:  appointmentHandler,
		familyMemberHandler: familyMemberHandler,
		verificationHandler: verificationHandler,
		auditLogHandler:     auditLogHandler,
		authMiddleware:      authMiddleware,
		corsMiddleware:      corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register/patient", r.authHandler.RegisterPatient).Methods(http.MethodPost)
	auth.HandleFunc("/register/doctor", r.authHandler.RegisterDoctor).Methods(http.MethodPost)
	auth.HandleFunc("/login", r.authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh-token", r.authHandler.RefreshToken).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", r.authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// Directory (public)
	api.HandleFunc("/doctors", r.directoryHandler.GetDoctors).Methods(http.MethodGet)
	api.HandleFunc("/doctors/{id}", r.directoryHandler.GetDoctor).Methods(http.MethodGet)
	api.HandleFunc("/clinics", r.directoryHandler.GetClinics).Methods(http.MethodGet)
	api.HandleFunc("/clinics/{id}", r.directoryHandler.GetClinic).Methods(http.MethodGet)

	// Own profile (any signed-in user)
	me := api.PathPrefix("/me").Subrouter()
	me.Use(r.authMiddleware.Authenticate)
	me.HandleFunc("", r.profileHandler.DeleteAccount).Methods(http.MethodDelete)
	me.HandleFunc("/profile", r.profileHandler.GetProfile).Methods(http.MethodGet)
	me.HandleFunc("/profile", r.profileHandler.UpdateProfile).Methods(http.MethodPut)
	me.HandleFunc("/avatar", r.profileHandler.UploadAvatar).Methods(http.MethodPost)
	me.HandleFunc("/favorites", r.profileHandler.GetFavorites).Methods(http.MethodGet)
	me.HandleFunc("/favorites", r.profileHandler.ToggleFavorite).Methods(http.MethodPost)

	// Family members (patient)
	family := api.PathPrefix("/me/family-members").Subrouter()
	family.Use(r.authMiddleware.Authenticate)
	family.Use(middleware.RequirePatient)
	family.HandleFunc("", r.familyMemberHandler.GetFamilyMembers).Methods(http.MethodGet)
	family.HandleFunc("", r.familyMemberHandler.CreateFamilyMember).Methods(http.MethodPost)
	family.HandleFunc("/{id}", r.familyMemberHandler.UpdateFamilyMember).Methods(http.MethodPut)
	family.HandleFunc("/{id}", r.familyMemberHandler.DeleteFamilyMember).Methods(http.MethodDelete)
	family.HandleFunc("/{id}/image", r.familyMemberHandler.UploadImage).Methods(http.MethodPost)

	// Appointments (patient or doctor)
	appointments := api.PathPrefix("/appointments").Subrouter()
	appointments.Use(r.authMiddleware.Authenticate)
	appointments.Use(middleware.RequirePatientOrDoctor)
	appointments.HandleFunc("/stream", r.appointmentHandler.StreamAppointments).Methods(http.MethodGet)
	appointments.HandleFunc("/{id}/cancel", r.appointmentHandler.CancelAppointment).Methods(http.MethodPost)

	booking := api.PathPrefix("/appointments").Subrouter()
	booking.Use(r.authMiddleware.Authenticate)
	booking.Use(middleware.RequirePatient)
	booking.HandleFunc("", r.appointmentHandler.GetMyAppointments).Methods(http.MethodGet)
	booking.HandleFunc("", r.appointmentHandler.BookAppointment).Methods(http.MethodPost)

	// Doctor routes
	doctor := api.PathPrefix("/doctor").Subrouter()
	doctor.Use(r.authMiddleware.Authenticate)
	doctor.Use(middleware.RequireDoctor)
	doctor.HandleFunc("/appointments", r.appointmentHandler.GetDoctorAppointments).Methods(http.MethodGet)
	doctor.HandleFunc("/verification/redeem", r.verificationHandler.RedeemActivationCode).Methods(http.MethodPost)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)

	// Doctor verification (admin)
	admin.HandleFunc("/doctors/pending", r.verificationHandler.GetPendingDoctors).Methods(http.MethodGet)
	admin.HandleFunc("/doctors/{id}/approve", r.verificationHandler.ApproveDoctor).Methods(http.MethodPost)
	admin.HandleFunc("/doctors/{id}/reject", r.verificationHandler.RejectDoctor).Methods(http.MethodPost)
	admin.HandleFunc("/doctors/{id}/reapply", r.verificationHandler.ReapplyDoctor).Methods(http.MethodPost)
	admin.HandleFunc("/doctors/{id}/invitation", r.verificationHandler.IssueInvitation).Methods(http.MethodPost)

	// Audit logs (admin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
