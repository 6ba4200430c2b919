// internal/app/features/wizard/session.go
package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vespahq/uploadhub/internal/app/system/csvio"
	"github.com/vespahq/uploadhub/internal/domain/models"
)

// UploadSession is one wizard run. A user has at most one live session;
// starting a new upload replaces it wholesale. All fields are guarded by
// the owning SessionStore's per-user lock.
type UploadSession struct {
	ID          string
	Role        string
	DisplayStep int
	CreatedAt   time.Time

	UploadType models.UploadType
	Method     models.UploadMethod

	// OrgChosen records that the organization step was answered; ActingOrg
	// stays nil when a super chose to upload for their own organization.
	OrgChosen bool
	ActingOrg *models.ActingOrganization

	FileName string
	Document *csvio.Document
	Rows     []models.ParsedRow

	Validation *models.ValidationResult

	// Submitting disables the process trigger while a dispatch is in
	// flight. Reset on completion whether or not the dispatch succeeded.
	Submitting  bool
	Job         *models.SubmissionJob
	SubmitError string

	ManualSubmitted int
}

func newSession(role string) *UploadSession {
	return &UploadSession{
		ID:          uuid.NewString(),
		Role:        role,
		DisplayStep: 1,
		CreatedAt:   time.Now(),
	}
}

// SessionStore holds live wizard sessions in memory, one per user. Session
// state is ephemeral by design; a restart discards it and users start over.
type SessionStore struct {
	mu     sync.Mutex
	byUser map[string]*UploadSession
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{byUser: make(map[string]*UploadSession)}
}

// Start replaces the user's session with a fresh one and returns it.
func (s *SessionStore) Start(userID, role string) *UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := newSession(role)
	s.byUser[userID] = sess
	return sess
}

// Get returns the user's live session, or nil when none exists.
func (s *SessionStore) Get(userID string) *UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byUser[userID]
}

// Update runs fn against the user's session under the store lock. It
// returns false without calling fn when the user has no session. Network
// calls must not happen inside fn; mark in-flight state instead and call
// back in when the response arrives.
func (s *SessionStore) Update(userID string, fn func(*UploadSession) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok {
		return false, nil
	}
	return true, fn(sess)
}
