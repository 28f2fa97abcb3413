package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// outage lets a fake fail every call while set.
type outage struct {
	mu   sync.Mutex
	down bool
}

func (o *outage) setDown(down bool) {
	o.mu.Lock()
	o.down = down
	o.mu.Unlock()
}

func (o *outage) check() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.down {
		return errConnRefused
	}
	return nil
}

type memProfileRepo struct {
	outage
	mu       sync.Mutex
	profiles map[uuid.UUID]entity.UserProfile
}

func newMemProfileRepo(profiles ...*entity.UserProfile) *memProfileRepo {
	r := &memProfileRepo{profiles: make(map[uuid.UUID]entity.UserProfile)}
	for _, p := range profiles {
		r.profiles[p.ID] = *p
	}
	return r
}

func (r *memProfileRepo) Create(ctx context.Context, p *entity.UserProfile) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.profiles {
		if existing.Email == p.Email {
			return &pgconn.PgError{Code: "23505", ConstraintName: "profiles_email_key"}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.profiles[p.ID] = *p
	return nil
}

func (r *memProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.UserProfile, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memProfileRepo) FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Email == email {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memProfileRepo) FindByRoleAndStatus(ctx context.Context, role string, status entity.VerificationStatus) ([]entity.UserProfile, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.UserProfile
	for _, p := range r.profiles {
		if p.Role == role && p.VerificationStatus == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProfileRepo) Update(ctx context.Context, p *entity.UserProfile) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = *p
	return nil
}

func (r *memProfileRepo) UpdateVerificationStatus(ctx context.Context, id uuid.UUID, from, to entity.VerificationStatus) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok || p.VerificationStatus != from {
		return 0, nil
	}
	p.VerificationStatus = to
	r.profiles[id] = p
	return 1, nil
}

func (r *memProfileRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return 0, nil
	}
	delete(r.profiles, id)
	return 1, nil
}

func (r *memProfileRepo) get(id uuid.UUID) (entity.UserProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	return p, ok
}

type memFavoriteRepo struct {
	outage
	mu        sync.Mutex
	favorites map[uuid.UUID]map[uuid.UUID]struct{}
}

func newMemFavoriteRepo() *memFavoriteRepo {
	return &memFavoriteRepo{favorites: make(map[uuid.UUID]map[uuid.UUID]struct{})}
}

func (r *memFavoriteRepo) Toggle(ctx context.Context, userID, doctorID uuid.UUID) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.favorites[userID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.favorites[userID] = set
	}
	if _, ok := set[doctorID]; ok {
		delete(set, doctorID)
		return false, nil
	}
	set[doctorID] = struct{}{}
	return true, nil
}

func (r *memFavoriteRepo) FindDoctorIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.favorites[userID]))
	for id := range r.favorites[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *memFavoriteRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.favorites, userID)
	return nil
}

type memFamilyRepo struct {
	outage
	mu      sync.Mutex
	members map[uuid.UUID]entity.FamilyMember
}

func newMemFamilyRepo() *memFamilyRepo {
	return &memFamilyRepo{members: make(map[uuid.UUID]entity.FamilyMember)}
}

func (r *memFamilyRepo) Create(ctx context.Context, m *entity.FamilyMember) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.members[m.ID] = *m
	return nil
}

func (r *memFamilyRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.FamilyMember, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *memFamilyRepo) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]entity.FamilyMember, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.FamilyMember{}
	for _, m := range r.members {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memFamilyRepo) Update(ctx context.Context, m *entity.FamilyMember) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = *m
	return nil
}

func (r *memFamilyRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return 0, nil
	}
	delete(r.members, id)
	return 1, nil
}

func (r *memFamilyRepo) DeleteByOwnerID(ctx context.Context, ownerID uuid.UUID) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.members {
		if m.OwnerID == ownerID {
			delete(r.members, id)
		}
	}
	return nil
}

// memAppointmentRepo enforces the one-active-booking-per-slot index the way
// Postgres reports it.
type memAppointmentRepo struct {
	outage
	mu           sync.Mutex
	appointments map[uuid.UUID]entity.Appointment
}

func newMemAppointmentRepo() *memAppointmentRepo {
	return &memAppointmentRepo{appointments: make(map[uuid.UUID]entity.Appointment)}
}

func (r *memAppointmentRepo) Create(ctx context.Context, a *entity.Appointment) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.DoctorID == a.DoctorID && existing.SlotAt.Equal(a.SlotAt) && !existing.IsCancelled() {
			return &pgconn.PgError{Code: "23505", ConstraintName: slotUniqueIndex}
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.appointments[a.ID] = *a
	return nil
}

func (r *memAppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAppointmentRepo) find(match func(a entity.Appointment) bool) ([]entity.Appointment, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Appointment{}
	for _, a := range r.appointments {
		if !a.IsCancelled() && match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotAt.Before(out[j].SlotAt) })
	return out, nil
}

func (r *memAppointmentRepo) FindByPatientUserID(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, error) {
	return r.find(func(a entity.Appointment) bool { return a.PatientUserID == userID })
}

func (r *memAppointmentRepo) FindByDoctorID(ctx context.Context, doctorID uuid.UUID) ([]entity.Appointment, error) {
	return r.find(func(a entity.Appointment) bool { return a.DoctorID == doctorID })
}

func (r *memAppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != entity.AppointmentUpcoming {
		return 0, nil
	}
	a.Cancel(at)
	r.appointments[id] = a
	return 1, nil
}

func (r *memAppointmentRepo) DeleteByPatientUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.appointments {
		if a.PatientUserID == userID {
			delete(r.appointments, id)
		}
	}
	return nil
}

type memDoctorRepo struct {
	outage
	mu      sync.Mutex
	doctors map[uuid.UUID]entity.Doctor
	order   []uuid.UUID
}

func newMemDoctorRepo(doctors ...entity.Doctor) *memDoctorRepo {
	r := &memDoctorRepo{doctors: make(map[uuid.UUID]entity.Doctor)}
	for _, d := range doctors {
		r.doctors[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

func (r *memDoctorRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memDoctorRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Doctor, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Doctor
	for _, id := range ids {
		if d, ok := r.doctors[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDoctorRepo) FindActive(ctx context.Context) ([]entity.Doctor, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Doctor
	for _, id := range r.order {
		if d, ok := r.doctors[id]; ok && d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDoctorRepo) Upsert(ctx context.Context, d *entity.Doctor) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[d.ID]; !ok {
		r.order = append(r.order, d.ID)
	}
	r.doctors[d.ID] = *d
	return nil
}

func (r *memDoctorRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.doctors, id)
	return nil
}

type memClinicRepo struct {
	outage
	clinics []entity.Clinic
}

func (r *memClinicRepo) FindAll(ctx context.Context) ([]entity.Clinic, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return append([]entity.Clinic(nil), r.clinics...), nil
}

func (r *memClinicRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Clinic, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	for _, c := range r.clinics {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

// memProfileCache keeps one session store per session id.
type memProfileCache struct {
	mu       sync.Mutex
	sessions map[string]*memSessionStore
}

func newMemProfileCache() *memProfileCache {
	return &memProfileCache{sessions: make(map[string]*memSessionStore)}
}

func (c *memProfileCache) ForSession(sessionID string) repository.SessionProfileStore {
	return c.session(sessionID)
}

func (c *memProfileCache) session(sessionID string) *memSessionStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		s = &memSessionStore{}
		c.sessions[sessionID] = s
	}
	return s
}

type memSessionStore struct {
	mu          sync.Mutex
	userID      uuid.UUID
	profile     *entity.UserProfile
	invalidated int
}

func (s *memSessionStore) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, nil
}

func (s *memSessionStore) Bind(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	return nil
}

func (s *memSessionStore) Load(ctx context.Context) (*entity.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	p := *s.profile
	return &p, nil
}

func (s *memSessionStore) Store(ctx context.Context, profile *entity.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != uuid.Nil && s.userID != profile.ID {
		return errors.New("session bound to another user")
	}
	p := *profile
	s.profile = &p
	return nil
}

func (s *memSessionStore) UpdateFavorites(ctx context.Context, favorites []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil {
		s.profile.FavoriteDoctorIDs = append([]uuid.UUID(nil), favorites...)
	}
	return nil
}

func (s *memSessionStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = uuid.Nil
	s.profile = nil
	s.invalidated++
	return nil
}

func (s *memSessionStore) cached() *entity.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// fakeMirror records directory writes and fails them while down.
type fakeMirror struct {
	outage
	mu       sync.Mutex
	mirrored []entity.UserProfile
	removed  []uuid.UUID
}

func (m *fakeMirror) Mirror(ctx context.Context, profile *entity.UserProfile) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrored = append(m.mirrored, *profile)
	return nil
}

func (m *fakeMirror) Remove(ctx context.Context, id uuid.UUID) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func (m *fakeMirror) last() (entity.UserProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mirrored) == 0 {
		return entity.UserProfile{}, false
	}
	return m.mirrored[len(m.mirrored)-1], true
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) record(action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAudit) LogCreate(ctx context.Context, userID *uuid.UUID, action, entityName, entityID string, newValue interface{}) error {
	return a.record(action)
}

func (a *recordingAudit) LogUpdate(ctx context.Context, userID *uuid.UUID, action, entityName, entityID string, oldValue, newValue interface{}) error {
	return a.record(action)
}

func (a *recordingAudit) LogDelete(ctx context.Context, userID *uuid.UUID, action, entityName, entityID string, oldValue interface{}) error {
	return a.record(action)
}

func (a *recordingAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, got := range a.actions {
		if got == action {
			return true
		}
	}
	return false
}

// recordingNotifier hands every notification to a buffered channel.
type recordingNotifier struct {
	ch chan entity.Notification
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan entity.Notification, 64)}
}

func (n *recordingNotifier) Notify(ctx context.Context, notification entity.Notification) error {
	select {
	case n.ch <- notification:
	default:
	}
	return nil
}

type mockBlobStorage struct {
	mock.Mock
}

func (m *mockBlobStorage) Upload(ctx context.Context, objectName, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, objectName, contentType, body, size)
	return args.String(0), args.Error(1)
}

type memSlotGuard struct {
	outage
	mu    sync.Mutex
	slots map[string]struct{}
}

func newMemSlotGuard() *memSlotGuard {
	return &memSlotGuard{slots: make(map[string]struct{})}
}

func (g *memSlotGuard) key(doctorID uuid.UUID, slotAt time.Time) string {
	return doctorID.String() + "|" + slotAt.UTC().Format(time.RFC3339)
}

func (g *memSlotGuard) Reserve(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	k := g.key(doctorID, slotAt)
	if _, ok := g.slots[k]; ok {
		return false, nil
	}
	g.slots[k] = struct{}{}
	return true, nil
}

func (g *memSlotGuard) Release(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) error {
	if err := g.check(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.slots, g.key(doctorID, slotAt))
	return nil
}

type memInvitationStore struct {
	outage
	mu          sync.Mutex
	invitations map[string]uuid.UUID
}

func newMemInvitationStore() *memInvitationStore {
	return &memInvitationStore{invitations: make(map[string]uuid.UUID)}
}

func (s *memInvitationStore) Save(ctx context.Context, tokenID string, doctorID uuid.UUID, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[tokenID] = doctorID
	return nil
}

func (s *memInvitationStore) Consume(ctx context.Context, tokenID string) (uuid.UUID, bool, error) {
	if err := s.check(); err != nil {
		return uuid.Nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.invitations[tokenID]
	delete(s.invitations, tokenID)
	return id, ok, nil
}

func (s *memInvitationStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invitations)
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]struct{})}
}

func (s *memTokenStore) key(kind string, userID uuid.UUID, tokenID string) string {
	return kind + ":" + userID.String() + ":" + tokenID
}

func (s *memTokenStore) Save(ctx context.Context, kind string, userID uuid.UUID, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[s.key(kind, userID, tokenID)] = struct{}{}
	return nil
}

func (s *memTokenStore) Exists(ctx context.Context, kind string, userID uuid.UUID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[s.key(kind, userID, tokenID)]
	return ok, nil
}

func (s *memTokenStore) Revoke(ctx context.Context, kind string, userID uuid.UUID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(kind, userID, tokenID)
	_, ok := s.tokens[k]
	delete(s.tokens, k)
	return ok, nil
}

func (s *memTokenStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.tokens {
		if strings.Contains(k, ":"+userID.String()+":") {
			delete(s.tokens, k)
		}
	}
	return nil
}

// staticDoctors resolves doctors from a fixed set.
type staticDoctors map[uuid.UUID]entity.Doctor

func (s staticDoctors) GetDoctor(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	d, ok := s[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

// gateFunc adapts a function to VerificationGate.
type gateFunc func(ctx context.Context, userID uuid.UUID) error

func (f gateFunc) EnsureVerifiedDoctor(ctx context.Context, userID uuid.UUID) error {
	return f(ctx, userID)
}

func allowAll(ctx context.Context, userID uuid.UUID) error { return nil }
