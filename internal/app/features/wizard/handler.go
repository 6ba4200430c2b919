// internal/app/features/wizard/handler.go
package wizard

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/vespahq/uploadhub/internal/app/records"
	"github.com/vespahq/uploadhub/internal/app/system/actingorg"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/app/system/csvio"
	"github.com/vespahq/uploadhub/internal/app/system/dispatch"
	"github.com/vespahq/uploadhub/internal/app/system/htmlsanitize"
	"github.com/vespahq/uploadhub/internal/app/system/uploadtypes"
	"github.com/vespahq/uploadhub/internal/app/system/validate"
	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler provides the wizard's HTTP surface. One live UploadSession per
// signed-in user; every mutating endpoint returns the full session state so
// the front end renders from a single shape.
type Handler struct {
	Sessions   *SessionStore
	Records    *records.Client
	Dispatcher *dispatch.Dispatcher
	Acting     *actingorg.Codec
	Log        *zap.Logger
}

// Start begins a fresh wizard run, replacing any existing session. A super
// user's persisted acting-organization selection is restored so it survives
// a page reload.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	sess := h.Sessions.Start(user.ID, user.Role)
	if user.Role == models.RoleSuper {
		if org := h.Acting.Get(r); org != nil {
			sess.ActingOrg = org
			sess.OrgChosen = true
		}
	}

	h.Log.Info("wizard session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.String("role", user.Role))

	writeJSON(w, http.StatusCreated, stateOf(sess))
}

// State returns the current session state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

// Next advances one step when the current step's gate accepts. A rejection
// leaves the step unchanged and surfaces the reason; an alternate upload
// type surfaces the workflow exit instead of a transition.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var state StateResponse
	var exit *ExitWorkflowError
	_, err := h.Sessions.Update(user.ID, func(s *UploadSession) error {
		err := s.Next()
		if errors.As(err, &exit) {
			return nil
		}
		state = stateOf(s)
		return err
	})
	if exit != nil {
		writeJSON(w, http.StatusOK, exitResponse{Exit: true, UploadType: exit.Type})
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Prev moves back one step. Always succeeds above step 1; results is
// terminal.
func (h *Handler) Prev(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var state StateResponse
	_, err := h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if err := s.Prev(); err != nil {
			return err
		}
		state = stateOf(s)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SelectType records the upload type. Changing type discards any parsed
// file and validation state, which would no longer match the type's rules.
func (h *Handler) SelectType(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.UploadType.IsPipelineType() && !req.UploadType.IsExitType() {
		writeError(w, http.StatusUnprocessableEntity, "unknown upload type")
		return
	}

	var state StateResponse
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.UploadType != req.UploadType {
			s.clearUploadState()
		}
		s.UploadType = req.UploadType
		state = stateOf(s)
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

// SelectMethod records csv or manual entry.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Method != models.MethodCSV && req.Method != models.MethodManual {
		writeError(w, http.StatusUnprocessableEntity, "unknown upload method")
		return
	}

	var state StateResponse
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.Method != req.Method {
			s.clearUploadState()
		}
		s.Method = req.Method
		state = stateOf(s)
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

// SelectOrganization records a super user's acting-organization choice and
// persists it so it survives a reload. Own=true clears the selection and
// uploads go to the super's own organization.
func (h *Handler) SelectOrganization(w http.ResponseWriter, r *http.Request) {
	user, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if sess.Role != models.RoleSuper {
		writeError(w, http.StatusForbidden, "only super users choose an organization")
		return
	}

	var req selectOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var acting *models.ActingOrganization
	if !req.Own {
		if req.OrganizationID == "" {
			writeError(w, http.StatusUnprocessableEntity, "organization_id is required")
			return
		}
		admins, err := h.Records.OrganizationAdmins(r.Context(), req.OrganizationID)
		if err != nil {
			h.Log.Warn("could not fetch recipient admins",
				zap.String("organization_id", req.OrganizationID),
				zap.Error(err))
			writeError(w, http.StatusBadGateway, "could not look up the organization; try again")
			return
		}
		acting = &models.ActingOrganization{
			OrganizationID:   req.OrganizationID,
			OrganizationName: req.OrganizationName,
			RecipientAdmins:  admins,
		}
	}

	if acting != nil {
		if err := h.Acting.Set(w, *acting); err != nil {
			writeError(w, http.StatusInternalServerError, "could not persist the selection")
			return
		}
	} else {
		h.Acting.Clear(w)
	}

	var state StateResponse
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		s.ActingOrg = acting
		s.OrgChosen = true
		state = stateOf(s)
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

// ListOrganizations returns the organizations a super user can act for.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.Records.Organizations(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not list organizations; try again")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// UploadFile ingests the multipart CSV. Cells are scrubbed to plain text
// before they enter the session; a structurally empty file is rejected in
// one message with no partial result.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, csvio.MaxUploadSize)
	if err := r.ParseMultipartForm(csvio.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file in request")
		return
	}
	defer file.Close()

	doc, err := csvio.Parse(file)
	if err != nil {
		if errors.Is(err, csvio.ErrEmptyFile) {
			writeError(w, http.StatusUnprocessableEntity, "the file contains no data rows")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "the file could not be read as CSV")
		return
	}
	sanitizeDocument(doc)

	// The step gate is checked inside the same critical section as the
	// mutation so a concurrent transition cannot slip between them.
	var state StateResponse
	_, err = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.CurrentStep() != StepUpload {
			return reject("not at the upload step")
		}
		s.FileName = header.Filename
		s.Document = doc
		s.Rows = doc.Rows
		s.Validation = nil
		s.Job = nil
		s.SubmitError = ""
		state = stateOf(s)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.Log.Info("file ingested",
		zap.String("session_id", state.SessionID),
		zap.String("file", header.Filename),
		zap.Int("rows", len(doc.Rows)))

	writeJSON(w, http.StatusOK, state)
}

// Validate runs the two-phase validation. Local findings block the remote
// phase entirely; the remote phase only runs on well-formed data.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	// Gate and snapshot under the lock; the remote phase runs against
	// exactly what was checked here.
	var (
		sessionID  string
		doc        *csvio.Document
		uploadType models.UploadType
	)
	_, err := h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.CurrentStep() != StepValidate {
			return reject("not at the validate step")
		}
		if s.Document == nil {
			return reject("no file has been uploaded")
		}
		if !s.UploadType.IsPipelineType() {
			return reject("no upload type selected")
		}
		sessionID = s.ID
		doc = s.Document
		uploadType = s.UploadType
		return nil
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	spec := uploadtypes.SpecFor(uploadType)

	result := validate.Local(doc, spec)
	if result.IsValid {
		result = validate.Remote(r.Context(), h.Records, doc, spec)
	}

	// If the session was replaced, or its type or file changed while the
	// remote phase was out, the result no longer describes the session's
	// data and is discarded.
	var state StateResponse
	var stale bool
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.ID != sessionID || s.Document != doc || s.UploadType != uploadType {
			stale = true
		} else {
			s.Validation = &result
		}
		state = stateOf(s)
		return nil
	})
	if stale {
		h.Log.Info("validation result discarded; session changed during the remote phase",
			zap.String("session_id", sessionID))
		writeJSON(w, http.StatusOK, state)
		return
	}

	h.Log.Info("validation completed",
		zap.String("session_id", sessionID),
		zap.String("source", string(result.Source)),
		zap.Bool("is_valid", result.IsValid),
		zap.Int("errors", len(result.Errors)))

	writeJSON(w, http.StatusOK, state)
}

// Process dispatches the validated rows as a submission job. The trigger is
// disabled while a dispatch is outstanding; a failure leaves the session on
// the same step so the user can retry without re-entering data.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Claim the in-flight guard and snapshot the fields the dispatch needs
	// at this moment, not at upload time.
	var (
		sessionID  string
		rows       []models.ParsedRow
		acting     *models.ActingOrganization
		uploadType models.UploadType
	)
	_, err := h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.CurrentStep() != StepProcess {
			return reject("not at the process step")
		}
		if s.Validation == nil || !s.Validation.IsValid {
			return reject("the data has not passed validation")
		}
		if s.Submitting {
			return ErrSubmissionInFlight
		}
		s.Submitting = true
		s.SubmitError = ""
		sessionID = s.ID
		rows = s.Rows
		acting = s.ActingOrg
		uploadType = s.UploadType
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	job, submitErr := h.Dispatcher.Submit(r.Context(), uploadtypes.SpecFor(uploadType), rows,
		models.SubmitOptions{
			SendNotifications: req.SendNotifications,
			NotificationEmail: req.NotificationEmail,
			Percentile:        req.Percentile,
			RunCalculators:    req.RunCalculators,
			UniversalPassword: req.UniversalPassword,
		},
		user.Identity(), acting)

	// A session that was abandoned while the dispatch was out must not
	// stamp its outcome onto the replacement; the result is discarded.
	var state StateResponse
	var stale bool
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.ID != sessionID {
			stale = true
			state = stateOf(s)
			return nil
		}
		s.Submitting = false
		if submitErr != nil {
			s.SubmitError = submitMessage(submitErr)
		} else {
			s.Job = job
			s.advanceToResults()
		}
		state = stateOf(s)
		return nil
	})
	if stale {
		h.Log.Info("dispatch result discarded; session was replaced mid-flight",
			zap.String("session_id", sessionID),
			zap.Bool("dispatched", submitErr == nil))
		writeJSON(w, http.StatusOK, state)
		return
	}

	if submitErr != nil {
		h.Log.Warn("submission failed",
			zap.String("user_id", user.ID),
			zap.String("upload_type", string(uploadType)),
			zap.Error(submitErr))
		writeJSON(w, http.StatusBadGateway, state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Manual validates and dispatches a single hand-entered record through the
// same pipeline as a one-row upload.
func (h *Handler) Manual(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Row) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		sessionID  string
		uploadType models.UploadType
		acting     *models.ActingOrganization
	)
	_, err := h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.CurrentStep() != StepManualEntry {
			return reject("not at the manual entry step")
		}
		if !s.UploadType.IsPipelineType() {
			return reject("no upload type selected")
		}
		sessionID = s.ID
		uploadType = s.UploadType
		acting = s.ActingOrg
		return nil
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	doc := documentFromRow(req.Row)
	sanitizeDocument(doc)

	spec := uploadtypes.SpecFor(uploadType)
	result := validate.Local(doc, spec)
	if result.IsValid {
		result = validate.Remote(r.Context(), h.Records, doc, spec)
	}
	if !result.IsValid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"validation": result})
		return
	}

	job, err := h.Dispatcher.Submit(r.Context(), spec, doc.Rows,
		models.SubmitOptions{
			SendNotifications: req.SendNotifications,
			NotificationEmail: req.NotificationEmail,
		},
		user.Identity(), acting)
	if err != nil {
		writeError(w, http.StatusBadGateway, submitMessage(err))
		return
	}

	// The record is dispatched either way; an abandoned session's
	// replacement just never sees it.
	var state StateResponse
	_, _ = h.Sessions.Update(user.ID, func(s *UploadSession) error {
		if s.ID == sessionID {
			s.ManualSubmitted++
			s.Job = job
		}
		state = stateOf(s)
		return nil
	})
	writeJSON(w, http.StatusOK, state)
}

// Reset replaces the session wholesale and clears the persisted
// acting-organization selection.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	h.Acting.Clear(w)
	sess := h.Sessions.Start(user.ID, user.Role)

	h.Log.Info("wizard session reset",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID))

	writeJSON(w, http.StatusCreated, stateOf(sess))
}

// helpers

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, *UploadSession, bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return nil, nil, false
	}
	sess := h.Sessions.Get(user.ID)
	if sess == nil {
		writeError(w, http.StatusNotFound, "no wizard session; start one first")
		return nil, nil, false
	}
	return user, sess, true
}

// clearUploadState discards everything downstream of the type/method
// choice.
func (s *UploadSession) clearUploadState() {
	s.FileName = ""
	s.Document = nil
	s.Rows = nil
	s.Validation = nil
	s.Job = nil
	s.SubmitError = ""
	s.ManualSubmitted = 0
}

func sanitizeDocument(doc *csvio.Document) {
	for i, h := range doc.Headers {
		doc.Headers[i] = htmlsanitize.Cell(h)
	}
	for _, row := range doc.Rows {
		for k, v := range row {
			row[k] = htmlsanitize.Cell(v)
		}
	}
}

func documentFromRow(row map[string]string) *csvio.Document {
	headers := make([]string, 0, len(row))
	for k := range row {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return &csvio.Document{Headers: headers, Rows: []models.ParsedRow{row}}
}

func submitMessage(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrNoValidRows):
		return "none of the rows have the minimal identifying fields; nothing was submitted"
	case errors.Is(err, records.ErrRejected):
		return "the records platform rejected the job: " + err.Error()
	case errors.Is(err, records.ErrNetwork):
		return "could not reach the records platform; the job was not created"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
