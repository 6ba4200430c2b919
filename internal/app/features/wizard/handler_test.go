package wizard

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vespahq/uploadhub/internal/app/records"
	"github.com/vespahq/uploadhub/internal/app/system/actingorg"
	"github.com/vespahq/uploadhub/internal/app/system/auth"
	"github.com/vespahq/uploadhub/internal/app/system/dispatch"
	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.uber.org/zap"
)

type testEnv struct {
	handler      *Handler
	router       http.Handler
	backendCalls map[string]int
}

func newTestEnv(t *testing.T, backend func(w http.ResponseWriter, r *http.Request)) *testEnv {
	t.Helper()

	calls := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls[r.URL.Path]++
		if backend != nil {
			backend(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := records.New(records.Config{BaseURL: srv.URL}, zap.NewNop())
	h := &Handler{
		Sessions:   NewSessionStore(),
		Records:    client,
		Dispatcher: dispatch.New(client, nil, zap.NewNop()),
		Acting:     actingorg.NewCodec([]byte("0123456789abcdef0123456789abcdef"), nil),
		Log:        zap.NewNop(),
	}

	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	return &testEnv{handler: h, router: Routes(h, sm), backendCalls: calls}
}

func (e *testEnv) do(t *testing.T, user *auth.SessionUser, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if user != nil {
		req = auth.WithTestUser(req, user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) uploadCSV(t *testing.T, user *auth.SessionUser, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = auth.WithTestUser(req, user)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var state StateResponse
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func adminUser() *auth.SessionUser {
	return &auth.SessionUser{ID: "u1", Email: "u1@school.edu", Role: models.RoleAdmin, OrganizationID: "org1"}
}

func superUser() *auth.SessionUser {
	return &auth.SessionUser{ID: "s1", Email: "s@hq.edu", Role: models.RoleSuper, OrganizationID: "hq"}
}

const staffCSV = "Title,First Name,Last Name,Email Address,Staff Type\n" +
	"Mr,John,Smith,jsmith@school.edu,\"tut,sub\"\n"

func staffBackend(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/staff/validate":
		json.NewEncoder(w).Encode(map[string]any{"success": true, "errors": []any{}, "rowCount": 1})
	case "/staff/process":
		json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-1"})
	default:
		http.NotFound(w, r)
	}
}

func TestStart_FreshSessionAtStepOne(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, adminUser(), http.MethodPost, "/", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.DisplayStep != 1 || state.Step != StepSelectType {
		t.Errorf("unexpected initial state: %+v", state)
	}
	if state.TotalSteps != 6 {
		t.Errorf("expected 6 steps for admin, got %d", state.TotalSteps)
	}
}

func TestState_NoSessionIs404(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, adminUser(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestWizard_RequiresSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, nil, http.MethodPost, "/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestWizard_StaffCSVHappyPath(t *testing.T) {
	env := newTestEnv(t, staffBackend)
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)

	rec := env.uploadCSV(t, user, "staff.csv", staffCSV)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeState(t, rec); state.RowCount != 1 || state.FileName != "staff.csv" {
		t.Fatalf("unexpected upload state: %+v", state)
	}

	env.do(t, user, http.MethodPost, "/next", nil)
	rec = env.do(t, user, http.MethodPost, "/validate", nil)
	state := decodeState(t, rec)
	if state.Validation == nil || !state.Validation.IsValid {
		t.Fatalf("expected passing validation, got %+v", state.Validation)
	}
	if state.Validation.Source != models.SourceRemote {
		t.Errorf("expected remote source after clean local pass, got %q", state.Validation.Source)
	}

	env.do(t, user, http.MethodPost, "/next", nil)
	rec = env.do(t, user, http.MethodPost, "/process", processRequest{NotificationEmail: "n@school.edu"})
	if rec.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state = decodeState(t, rec)
	if state.Job == nil || state.Job.JobID != "job-1" || state.Job.Status != models.JobQueued {
		t.Fatalf("unexpected job: %+v", state.Job)
	}
	if state.Step != StepResults {
		t.Errorf("expected results step after dispatch, got %q", state.Step)
	}
	if env.backendCalls["/staff/process"] != 1 {
		t.Errorf("expected 1 process call, got %d", env.backendCalls["/staff/process"])
	}
}

func TestValidate_LocalFailureBlocksRemote(t *testing.T) {
	env := newTestEnv(t, staffBackend)
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.uploadCSV(t, user, "staff.csv",
		"Title,First Name,Last Name,Email Address,Staff Type\nMr,,Smith,bad-email,tut\n")
	env.do(t, user, http.MethodPost, "/next", nil)

	rec := env.do(t, user, http.MethodPost, "/validate", nil)
	state := decodeState(t, rec)
	if state.Validation == nil || state.Validation.IsValid {
		t.Fatalf("expected failing validation, got %+v", state.Validation)
	}
	if state.Validation.Source != models.SourceLocal {
		t.Errorf("expected local source, got %q", state.Validation.Source)
	}
	if len(state.Validation.Errors) != 2 {
		t.Errorf("expected 2 errors, got %+v", state.Validation.Errors)
	}
	if env.backendCalls["/staff/validate"] != 0 {
		t.Errorf("remote validation invoked %d times despite local failure",
			env.backendCalls["/staff/validate"])
	}

	// Forward transition stays gated on the failing result.
	rec = env.do(t, user, http.MethodPost, "/next", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 advancing past failing validation, got %d", rec.Code)
	}
}

func TestProcess_BackendRejectionLeavesSessionResumable(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/staff/validate":
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		case "/staff/process":
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "quota exceeded"})
		}
	})
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.uploadCSV(t, user, "staff.csv", staffCSV)
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/validate", nil)
	env.do(t, user, http.MethodPost, "/next", nil)

	rec := env.do(t, user, http.MethodPost, "/process", processRequest{})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state.Job != nil {
		t.Errorf("no job should exist after rejection, got %+v", state.Job)
	}
	if state.Step != StepProcess {
		t.Errorf("expected to stay at process step, got %q", state.Step)
	}
	if state.SubmissionInFlight {
		t.Error("submit control should re-enable after failure")
	}
	if state.SubmitError == "" {
		t.Error("expected a surfaced submit error")
	}

	// Retrying is a fresh attempt, never automatic.
	if env.backendCalls["/staff/process"] != 1 {
		t.Errorf("expected exactly 1 process call, got %d", env.backendCalls["/staff/process"])
	}
}

func TestProcess_ResetMidFlightLeavesFreshSessionUntouched(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/staff/validate":
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		case "/staff/process":
			close(entered)
			<-release
			json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-stale"})
		}
	})
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.uploadCSV(t, user, "staff.csv", staffCSV)
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/validate", nil)
	env.do(t, user, http.MethodPost, "/next", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader("{}"))
		req = auth.WithTestUser(req, user)
		env.router.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-entered

	// Abandon the run while the dispatch is still out.
	rec := env.do(t, user, http.MethodPost, "/reset", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reset: expected 201, got %d", rec.Code)
	}

	close(release)
	<-done

	// The replacement session never sees the abandoned run's outcome.
	state := decodeState(t, env.do(t, user, http.MethodGet, "/", nil))
	if state.Job != nil {
		t.Errorf("fresh session inherited job %+v from the abandoned run", state.Job)
	}
	if state.DisplayStep != 1 || state.Step != StepSelectType {
		t.Errorf("fresh session advanced by a stale dispatch: step %d %q", state.DisplayStep, state.Step)
	}
	if state.SubmissionInFlight {
		t.Error("fresh session marked in flight by the abandoned run")
	}
}

func TestValidate_TypeChangeMidFlightDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/staff/validate" {
			close(entered)
			<-release
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}
	})
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.uploadCSV(t, user, "staff.csv", staffCSV)
	env.do(t, user, http.MethodPost, "/next", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/validate", nil)
		req = auth.WithTestUser(req, user)
		env.router.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-entered

	// Switching type discards the file; the in-flight result no longer
	// describes the session's data.
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStudents})

	close(release)
	<-done

	state := decodeState(t, env.do(t, user, http.MethodGet, "/", nil))
	if state.Validation != nil {
		t.Errorf("stale validation result landed on the changed session: %+v", state.Validation)
	}
}

func TestUploadFile_WrongStepConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()
	env.do(t, user, http.MethodPost, "/", nil)

	rec := env.uploadCSV(t, user, "staff.csv", staffCSV)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 uploading before the upload step, got %d", rec.Code)
	}
}

func TestSelectType_UnknownTypeRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()
	env.do(t, user, http.MethodPost, "/", nil)

	rec := env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: "mystery"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestNext_ExitTypeSurfacesWorkflowExit(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()
	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeCreateOrg})

	rec := env.do(t, user, http.MethodPost, "/next", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var exit exitResponse
	if err := json.NewDecoder(rec.Body).Decode(&exit); err != nil {
		t.Fatalf("decode exit: %v", err)
	}
	if !exit.Exit || exit.UploadType != models.UploadTypeCreateOrg {
		t.Errorf("unexpected exit response: %+v", exit)
	}
}

func TestSelectOrganization_SuperOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()
	env.do(t, user, http.MethodPost, "/", nil)

	rec := env.do(t, user, http.MethodPost, "/organization",
		selectOrganizationRequest{OrganizationID: "org9"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin, got %d", rec.Code)
	}
}

func TestSelectOrganization_SetsActingOrgAndCookie(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/organizations/org9/admins" {
			json.NewEncoder(w).Encode([]models.Admin{{Name: "Head", Email: "head@ninth.edu"}})
		}
	})
	user := superUser()
	env.do(t, user, http.MethodPost, "/", nil)

	rec := env.do(t, user, http.MethodPost, "/organization",
		selectOrganizationRequest{OrganizationID: "org9", OrganizationName: "Ninth School"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.ActingOrganization == nil || state.ActingOrganization.OrganizationID != "org9" {
		t.Fatalf("unexpected acting org: %+v", state.ActingOrganization)
	}
	if len(state.ActingOrganization.RecipientAdmins) != 1 {
		t.Errorf("expected recipient admins, got %+v", state.ActingOrganization.RecipientAdmins)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected the selection to be persisted in a cookie")
	}
}

func TestStart_RestoresPersistedActingOrg(t *testing.T) {
	env := newTestEnv(t, nil)
	user := superUser()

	codecRec := httptest.NewRecorder()
	if err := env.handler.Acting.Set(codecRec, models.ActingOrganization{
		OrganizationID: "org9", OrganizationName: "Ninth School",
	}); err != nil {
		t.Fatalf("set cookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, c := range codecRec.Result().Cookies() {
		req.AddCookie(c)
	}
	req = auth.WithTestUser(req, user)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	state := decodeState(t, rec)
	if state.ActingOrganization == nil || state.ActingOrganization.OrganizationID != "org9" {
		t.Errorf("expected restored selection, got %+v", state.ActingOrganization)
	}
}

func TestReset_ReplacesSessionAndClearsSelection(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()
	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)

	rec := env.do(t, user, http.MethodPost, "/reset", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state.DisplayStep != 1 || state.UploadType != "" {
		t.Errorf("expected pristine session, got %+v", state)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the acting-organization cookie to be cleared")
	}
}

func TestManual_SingleRecordLoop(t *testing.T) {
	env := newTestEnv(t, staffBackend)
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodManual})
	env.do(t, user, http.MethodPost, "/next", nil)

	row := map[string]string{
		"Title": "Ms", "First Name": "Jane", "Last Name": "Doe",
		"Email Address": "jdoe@school.edu", "Staff Type": "hod",
	}
	rec := env.do(t, user, http.MethodPost, "/manual", manualRequest{Row: row})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.ManualSubmitted != 1 {
		t.Errorf("expected 1 manual submission, got %d", state.ManualSubmitted)
	}
	if state.Job == nil || state.Job.TotalRows != 1 {
		t.Errorf("expected a one-row job, got %+v", state.Job)
	}

	// An invalid record is rejected without a dispatch.
	rec = env.do(t, user, http.MethodPost, "/manual", manualRequest{
		Row: map[string]string{"Title": "Ms", "Email Address": "not-an-email"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if env.backendCalls["/staff/process"] != 1 {
		t.Errorf("expected 1 process call, got %d", env.backendCalls["/staff/process"])
	}

	// The loop completes into results.
	rec = env.do(t, user, http.MethodPost, "/next", nil)
	if state := decodeState(t, rec); state.Step != StepResults {
		t.Errorf("expected results, got %q", state.Step)
	}
}

func TestUploadFile_EmptyFileRejectedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)

	rec := env.uploadCSV(t, user, "empty.csv", "Title,First Name\n\n,\n")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	// No partial result: the session still has no rows.
	state := decodeState(t, env.do(t, user, http.MethodGet, "/", nil))
	if state.RowCount != 0 || state.FileName != "" {
		t.Errorf("expected no ingested data, got %+v", state)
	}
}

func TestUploadFile_SanitizesCells(t *testing.T) {
	env := newTestEnv(t, nil)
	user := adminUser()

	env.do(t, user, http.MethodPost, "/", nil)
	env.do(t, user, http.MethodPost, "/type", selectTypeRequest{UploadType: models.UploadTypeStaff})
	env.do(t, user, http.MethodPost, "/next", nil)
	env.do(t, user, http.MethodPost, "/method", selectMethodRequest{Method: models.MethodCSV})
	env.do(t, user, http.MethodPost, "/next", nil)

	env.uploadCSV(t, user, "staff.csv",
		"Title,First Name,Last Name,Email Address,Staff Type\n"+
			"Mr,<script>alert(1)</script>John,Smith,jsmith@school.edu,tut\n")

	sess := env.handler.Sessions.Get(user.ID)
	if got := sess.Rows[0]["First Name"]; got != "John" {
		t.Errorf("expected sanitized cell, got %q", got)
	}
}
