package web

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pravartak01/shlokayug-enrollment/internal/domain"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/model"
	"github.com/pravartak01/shlokayug-enrollment/internal/domain/ports/repository"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/metrics"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// ownedEnrollment loads the enrollment and enforces that it belongs to
// the authenticated learner. Foreign enrollments read as not found so
// the API does not leak their existence.
func (s *Server) ownedEnrollment(w http.ResponseWriter, r *http.Request) (*model.Enrollment, bool) {
	id := chi.URLParam(r, "id")
	e, err := s.enrollUC.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return nil, false
	}
	if e.LearnerID != learnerID(r.Context()) {
		writeDomainError(w, s.reqLog(r), domain.ErrNotFound)
		return nil, false
	}
	return e, true
}

// ---- enrollment lifecycle ----

type initiateRequest struct {
	CourseID     string `json:"course_id"`
	Type         string `json:"type"`
	BillingCycle string `json:"billing_cycle,omitempty"`
	Method       string `json:"method,omitempty"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	var fieldErrs []apiError
	if req.CourseID == "" {
		fieldErrs = append(fieldErrs, apiError{Code: "VALIDATION_FAILED", Message: "course_id is required", Field: "course_id"})
	}
	if !model.EnrollmentType(req.Type).Valid() {
		fieldErrs = append(fieldErrs, apiError{Code: "VALIDATION_FAILED", Message: "type must be one_time or subscription", Field: "type"})
	}
	if model.EnrollmentType(req.Type) == model.EnrollmentTypeSubscription && !model.BillingCycle(req.BillingCycle).Valid() {
		fieldErrs = append(fieldErrs, apiError{Code: "INVALID_BILLING_CYCLE", Message: "billing_cycle must be monthly, quarterly or yearly", Field: "billing_cycle"})
	}
	if fieldErrs != nil {
		writeFieldErrors(w, fieldErrs)
		return
	}

	t, err := s.enrollUC.Initiate(r.Context(), usecase.InitiateRequest{
		LearnerID:    learnerID(r.Context()),
		CourseID:     req.CourseID,
		Type:         model.EnrollmentType(req.Type),
		BillingCycle: model.BillingCycle(req.BillingCycle),
		Method:       req.Method,
	})
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncPayment("initiated")
	writeData(w, http.StatusCreated, toTransactionDTO(t), "payment initiated")
}

type confirmRequest struct {
	TransactionID     string `json:"transaction_id"`
	GatewayPaymentID  string `json:"gateway_payment_id"`
	Signature         string `json:"signature"`
	DeviceFingerprint string `json:"device_fingerprint"`
	DevicePlatform    string `json:"device_platform,omitempty"`
	DeviceMeta        string `json:"device_meta,omitempty"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	learner := learnerID(r.Context())
	e, err := s.enrollUC.Confirm(r.Context(), usecase.ConfirmRequest{
		TransactionID:     req.TransactionID,
		GatewayPaymentID:  req.GatewayPaymentID,
		Signature:         req.Signature,
		DeviceFingerprint: req.DeviceFingerprint,
		DevicePlatform:    req.DevicePlatform,
		DeviceMeta:        req.DeviceMeta,
		Actor:             learner,
		IPAddress:         clientIP(r),
	})
	if err != nil {
		if domain.Code(err) == "PAYMENT_VERIFICATION_FAILED" {
			metrics.IncPayment("failed")
		}
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncPayment("success")
	metrics.AddPaymentRevenue(e.Payment.Amount.Currency, e.Payment.Amount.Total)
	metrics.IncEnrollment("confirmed", string(e.Type))
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "enrollment confirmed")
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	es, err := s.enrollUC.ListByLearner(r.Context(), learnerID(r.Context()), offset, limit)
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTOs(es), "")
}

func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "")
}

type accessRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

func (s *Server) handleValidateAccess(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req accessRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // body is optional
	}
	e, err := s.enrollUC.ValidateAccess(r.Context(), e.ID, req.DeviceID)
	if err != nil {
		metrics.IncAccessCheck("denied")
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncAccessCheck("granted")
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "access granted")
}

// ---- devices ----

type addDeviceRequest struct {
	Fingerprint string `json:"fingerprint"`
	Platform    string `json:"platform,omitempty"`
	ClientMeta  string `json:"client_meta,omitempty"`
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Fingerprint == "" {
		writeFieldErrors(w, []apiError{{Code: "VALIDATION_FAILED", Message: "fingerprint is required", Field: "fingerprint"}})
		return
	}
	d, err := s.devUC.AddDevice(r.Context(), e.ID, req.Fingerprint, req.Platform, req.ClientMeta, learnerID(r.Context()), clientIP(r))
	if err != nil {
		if domain.Code(err) == "DEVICE_LIMIT_EXCEEDED" {
			metrics.IncDeviceRegistration("limit_exceeded")
		}
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncDeviceRegistration("added")
	writeData(w, http.StatusCreated, toDeviceDTO(d), "device registered")
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	if err := s.devUC.RemoveDevice(r.Context(), e.ID, chi.URLParam(r, "deviceID"), learnerID(r.Context()), clientIP(r)); err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncDeviceRegistration("removed")
	writeData(w, http.StatusOK, nil, "device removed")
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	ds, err := s.devUC.ListDevices(r.Context(), e.ID)
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	out := make([]deviceDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDeviceDTO(d))
	}
	writeData(w, http.StatusOK, out, "")
}

// ---- progress ----

type progressRequest struct {
	UnitID           string `json:"unit_id"`
	TimeSpentSeconds int64  `json:"time_spent_seconds"`
	TotalUnits       int    `json:"total_units"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	var fieldErrs []apiError
	if req.UnitID == "" {
		fieldErrs = append(fieldErrs, apiError{Code: "VALIDATION_FAILED", Message: "unit_id is required", Field: "unit_id"})
	}
	if req.TotalUnits <= 0 {
		fieldErrs = append(fieldErrs, apiError{Code: "VALIDATION_FAILED", Message: "total_units must be positive", Field: "total_units"})
	}
	if req.TimeSpentSeconds < 0 {
		fieldErrs = append(fieldErrs, apiError{Code: "VALIDATION_FAILED", Message: "time_spent_seconds must not be negative", Field: "time_spent_seconds"})
	}
	if fieldErrs != nil {
		writeFieldErrors(w, fieldErrs)
		return
	}
	e, err := s.progUC.Update(r.Context(), e.ID, req.UnitID, req.TimeSpentSeconds, req.TotalUnits, learnerID(r.Context()), clientIP(r))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "progress updated")
}

// ---- audit trail ----

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	offset, limit := pageParams(r)
	entries, err := s.audits.ListByEnrollment(r.Context(), repository.NoTX, e.ID, offset, limit)
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	out := make([]auditDTO, 0, len(entries))
	for _, a := range entries {
		out = append(out, toAuditDTO(a))
	}
	writeData(w, http.StatusOK, out, "")
}

// ---- subscription operations ----

type pauseRequest struct {
	Reason       string `json:"reason,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req pauseRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	e, err := s.subUC.Pause(r.Context(), e.ID, req.Reason, req.DurationDays, learnerID(r.Context()), clientIP(r))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "subscription paused")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	e, err := s.subUC.Resume(r.Context(), e.ID, learnerID(r.Context()), clientIP(r))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "subscription resumed")
}

type cancelRequest struct {
	Reason    string `json:"reason,omitempty"`
	Immediate bool   `json:"immediate,omitempty"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	e, err := s.subUC.Cancel(r.Context(), e.ID, req.Reason, req.Immediate, learnerID(r.Context()), clientIP(r))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncEnrollment("cancelled", string(e.Type))
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "subscription cancelled")
}

type renewRequest struct {
	BillingCycle string `json:"billing_cycle,omitempty"`
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req renewRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	t, err := s.subUC.Renew(r.Context(), e.ID, model.BillingCycle(req.BillingCycle), learnerID(r.Context()))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.IncEnrollment("renewal_initiated", string(e.Type))
	writeData(w, http.StatusCreated, toTransactionDTO(t), "renewal payment initiated")
}

type preferencesRequest struct {
	AutoRenew    *bool   `json:"auto_renew,omitempty"`
	BillingCycle *string `json:"billing_cycle,omitempty"`
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	e, ok := s.ownedEnrollment(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	var cycle *model.BillingCycle
	if req.BillingCycle != nil {
		c := model.BillingCycle(*req.BillingCycle)
		if !c.Valid() {
			writeFieldErrors(w, []apiError{{Code: "INVALID_BILLING_CYCLE", Message: "billing_cycle must be monthly, quarterly or yearly", Field: "billing_cycle"}})
			return
		}
		cycle = &c
	}
	e, err := s.subUC.UpdatePreferences(r.Context(), e.ID, req.AutoRenew, cycle, learnerID(r.Context()), clientIP(r))
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toEnrollmentDTO(e), "preferences updated")
}

// ---- admin: refunds, distribution, analytics ----

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeFieldErrors(w, []apiError{{Code: "VALIDATION_FAILED", Message: "amount must be positive", Field: "amount"}})
		return
	}
	t, err := s.payUC.ProcessRefund(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Reason, "admin")
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	metrics.AddRefundAmount(t.Amount.Currency, req.Amount)
	writeData(w, http.StatusOK, toTransactionDTO(t), "refund processed")
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	t, err := s.payUC.DistributeRevenue(r.Context(), chi.URLParam(r, "id"), "admin")
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, toTransactionDTO(t), "revenue distributed")
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	revenue, err := s.statsUC.Revenue(r.Context())
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	enrollments, err := s.statsUC.Enrollments(r.Context())
	if err != nil {
		writeDomainError(w, s.reqLog(r), err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"revenue":     revenue,
		"enrollments": enrollments,
	}, "")
}
