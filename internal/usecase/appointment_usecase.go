package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrAppointmentNotFound         = errors.New("appointment not found")
	ErrAppointmentAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrAppointmentNotUpcoming      = errors.New("only upcoming appointments can be cancelled")
	ErrSlotTaken                   = errors.New("slot is already booked")
	ErrSlotInPast                  = errors.New("slot is in the past")
	ErrInvalidSlot                 = errors.New("invalid slot, use YYYY-MM-DD and HH:MM")
	ErrFamilyMemberNotFound        = errors.New("family member not found")
)

const (
	slotUniqueIndex = "uniq_appointments_doctor_slot"

	// maxSnapshots bounds the last-good lists kept for fallback.
	maxSnapshots = 10000
)

// BookRequest describes a booking. PatientDisplayName may name a family
// member; when empty it is taken from the family member or the account.
type BookRequest struct {
	DoctorID           uuid.UUID
	PatientUserID      uuid.UUID
	PatientDisplayName string
	FamilyMemberID     *uuid.UUID
	Slot               entity.Slot
	Location           string
}

// Actor is the authenticated caller of a mutation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// AppointmentLists partitions appointments around the time of the call.
// Past entries carry the derived completed status. Stale is set when the
// backend could not be reached and the last good fetch was used; FetchErr
// then holds the cause.
type AppointmentLists struct {
	Upcoming []entity.Appointment
	Past     []entity.Appointment
	Stale    bool
	FetchErr error
}

type AppointmentUsecase interface {
	Book(ctx context.Context, req BookRequest) (*entity.Appointment, error)
	Cancel(ctx context.Context, actor Actor, appointmentID uuid.UUID) error
	ListForPatient(ctx context.Context, userID uuid.UUID) (*AppointmentLists, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) (*AppointmentLists, error)
	// Watch streams fresh lists for scope whenever its appointments change,
	// until ctx ends or the watch is closed.
	Watch(ctx context.Context, scope WatchScope) (*Watch, error)
}

// VerificationGate rejects doctors that may not see patient data.
type VerificationGate interface {
	EnsureVerifiedDoctor(ctx context.Context, userID uuid.UUID) error
}

type appointmentUsecase struct {
	log             *logrus.Logger
	transactor      repository.Transactor
	appointmentRepo repository.AppointmentRepository
	profileRepo     repository.ProfileRepository
	familyRepo      repository.FamilyMemberRepository
	doctors         DoctorLookup
	gate            VerificationGate
	slotGuard       repository.SlotGuard
	auditService    service.AuditService
	changeFeed      repository.ChangeFeed
	notifier        repository.NotificationSink
	location        *time.Location
	now             func() time.Time
	fetchTimeout    time.Duration

	snapMu    sync.Mutex
	snapshots map[WatchScope][]entity.Appointment

	watchers *watchHub
}

func NewAppointmentUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	appointmentRepo repository.AppointmentRepository,
	profileRepo repository.ProfileRepository,
	familyRepo repository.FamilyMemberRepository,
	doctors DoctorLookup,
	gate VerificationGate,
	slotGuard repository.SlotGuard,
	auditService service.AuditService,
	changeFeed repository.ChangeFeed,
	notifier repository.NotificationSink,
	location *time.Location,
	now func() time.Time,
	fetchTimeout time.Duration,
) AppointmentUsecase {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	u := &appointmentUsecase{
		log:             log,
		transactor:      transactor,
		appointmentRepo: appointmentRepo,
		profileRepo:     profileRepo,
		familyRepo:      familyRepo,
		doctors:         doctors,
		gate:            gate,
		slotGuard:       slotGuard,
		auditService:    auditService,
		changeFeed:      changeFeed,
		notifier:        notifier,
		location:        location,
		now:             now,
		fetchTimeout:    fetchTimeout,
		snapshots:       make(map[WatchScope][]entity.Appointment),
	}
	u.watchers = newWatchHub(u, changeFeed, notifier, log)
	return u
}

func (u *appointmentUsecase) Book(ctx context.Context, req BookRequest) (*entity.Appointment, error) {
	slotAt, err := req.Slot.At(u.location)
	if err != nil {
		return nil, ErrInvalidSlot
	}
	if !slotAt.After(u.now()) {
		return nil, ErrSlotInPast
	}

	doctor, err := u.doctors.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, ErrDoctorUnavailable
	}

	patientName, err := u.patientName(ctx, req)
	if err != nil {
		return nil, err
	}

	reserved, err := u.slotGuard.Reserve(ctx, req.DoctorID, slotAt)
	if err != nil {
		// The unique index still protects the slot.
		u.log.Warnf("Slot guard unavailable, relying on database constraint: %+v", err)
		reserved = true
	}
	if !reserved {
		return nil, ErrSlotTaken
	}

	location := req.Location
	if location == "" {
		location = firstNonEmpty(doctor.Hospital, doctor.Address)
	}

	appointment := &entity.Appointment{
		DoctorID:       req.DoctorID,
		PatientUserID:  req.PatientUserID,
		FamilyMemberID: req.FamilyMemberID,
		PatientName:    patientName,
		SlotDate:       req.Slot.Date,
		SlotTime:       req.Slot.Time,
		SlotAt:         slotAt,
		Status:         entity.AppointmentUpcoming,
		Location:       location,
		Paid:           false,
	}

	err = u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := u.appointmentRepo.Create(ctx, appointment); err != nil {
			if isDuplicateKeyError(err, slotUniqueIndex) {
				return ErrSlotTaken
			}
			if isForeignKeyError(err, "patient_user_id") {
				return ErrProfileNotFound
			}
			if isForeignKeyError(err, "family_member_id") {
				return ErrFamilyMemberNotFound
			}
			return unavailable(err)
		}
		return u.auditService.LogCreate(ctx, &req.PatientUserID, entity.AuditActionAppointmentBook, "appointment", appointment.ID.String(), appointment)
	})
	if err != nil {
		if !errors.Is(err, ErrSlotTaken) {
			// A slot held by someone else must not be released.
			u.releaseSlot(ctx, req.DoctorID, slotAt)
		}
		u.log.Warnf("Failed to book appointment: %+v", err)
		return nil, err
	}

	appointment.Doctor = doctor
	u.publish(ctx, appointment, entity.ChangeInsert,
		fmt.Sprintf("New appointment booked with %s on %s at %s", doctor.Name, appointment.SlotDate, appointment.SlotTime))

	return appointment, nil
}

func (u *appointmentUsecase) patientName(ctx context.Context, req BookRequest) (string, error) {
	if req.FamilyMemberID != nil {
		member, err := u.familyRepo.FindByID(ctx, *req.FamilyMemberID)
		if err != nil {
			return "", unavailable(err)
		}
		if member == nil || member.OwnerID != req.PatientUserID {
			return "", ErrFamilyMemberNotFound
		}
		return firstNonEmpty(strings.TrimSpace(req.PatientDisplayName), member.Name), nil
	}

	if name := strings.TrimSpace(req.PatientDisplayName); name != "" {
		return name, nil
	}

	profile, err := u.profileRepo.FindByID(ctx, req.PatientUserID)
	if err != nil {
		return "", unavailable(err)
	}
	if profile == nil {
		return "", ErrProfileNotFound
	}
	return profile.FullName, nil
}

func (u *appointmentUsecase) Cancel(ctx context.Context, actor Actor, appointmentID uuid.UUID) error {
	appointment, err := u.appointmentRepo.FindByID(ctx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return unavailable(err)
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}

	if err := u.authorizeCancel(ctx, actor, appointment); err != nil {
		return err
	}

	if appointment.IsCancelled() {
		return ErrAppointmentAlreadyCancelled
	}
	if appointment.SlotAt.Before(u.now()) {
		return ErrAppointmentNotUpcoming
	}

	cancelledAt := u.now().UTC()
	err = u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := u.appointmentRepo.Cancel(ctx, appointmentID, cancelledAt)
		if err != nil {
			return unavailable(err)
		}
		if rows == 0 {
			return ErrAppointmentAlreadyCancelled
		}
		return u.auditService.LogUpdate(ctx, &actor.UserID, entity.AuditActionAppointmentCancel, "appointment", appointmentID.String(),
			entity.JSON{"status": entity.AppointmentUpcoming},
			entity.JSON{"status": entity.AppointmentCancelled},
		)
	})
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointmentID, err)
		return err
	}

	u.releaseSlot(ctx, appointment.DoctorID, appointment.SlotAt)

	appointment.Cancel(cancelledAt)
	u.publish(ctx, appointment, entity.ChangeUpdate,
		fmt.Sprintf("Appointment for %s on %s at %s was cancelled", appointment.PatientName, appointment.SlotDate, appointment.SlotTime))
	return nil
}

func (u *appointmentUsecase) authorizeCancel(ctx context.Context, actor Actor, a *entity.Appointment) error {
	switch {
	case actor.Role == entity.RoleAdmin:
		return nil
	case actor.UserID == a.PatientUserID:
		return nil
	case actor.Role == entity.RoleDoctor && actor.UserID == a.DoctorID:
		return u.gate.EnsureVerifiedDoctor(ctx, actor.UserID)
	default:
		return ErrForbidden
	}
}

func (u *appointmentUsecase) releaseSlot(ctx context.Context, doctorID uuid.UUID, slotAt time.Time) {
	if err := u.slotGuard.Release(context.WithoutCancel(ctx), doctorID, slotAt); err != nil {
		u.log.Warnf("Failed to release slot guard: %+v", err)
	}
}

func (u *appointmentUsecase) publish(ctx context.Context, a *entity.Appointment, op entity.ChangeOp, summary string) {
	event := entity.ChangeEvent{
		Table:    entity.TableAppointments,
		Op:       op,
		RecordID: a.ID,
		Keys: map[string]uuid.UUID{
			entity.FieldDoctorID: a.DoctorID,
			entity.FieldUserID:   a.PatientUserID,
		},
		Summary:    summary,
		OccurredAt: u.now().UTC(),
	}
	if err := u.changeFeed.Publish(ctx, event); err != nil {
		u.log.Warnf("Failed to publish appointment change: %+v", err)
	}
}

func (u *appointmentUsecase) ListForPatient(ctx context.Context, userID uuid.UUID) (*AppointmentLists, error) {
	return u.list(ctx, WatchScope{Field: entity.FieldUserID, ID: userID})
}

func (u *appointmentUsecase) ListForDoctor(ctx context.Context, doctorID uuid.UUID) (*AppointmentLists, error) {
	if err := u.gate.EnsureVerifiedDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return u.list(ctx, WatchScope{Field: entity.FieldDoctorID, ID: doctorID})
}

// list fetches the scope's appointments and partitions them. A failed fetch
// falls back to the scope's last good result, flagged stale.
func (u *appointmentUsecase) list(ctx context.Context, scope WatchScope) (*AppointmentLists, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()

	var (
		appointments []entity.Appointment
		err          error
	)
	switch scope.Field {
	case entity.FieldDoctorID:
		appointments, err = u.appointmentRepo.FindByDoctorID(fetchCtx, scope.ID)
	case entity.FieldUserID:
		appointments, err = u.appointmentRepo.FindByPatientUserID(fetchCtx, scope.ID)
	default:
		return nil, fmt.Errorf("unknown appointment scope %q", scope.Field)
	}

	if err != nil {
		u.log.Warnf("Failed to fetch appointments for %s %s: %+v", scope.Field, scope.ID, err)
		cached, ok := u.snapshot(scope)
		if !ok {
			return nil, unavailable(err)
		}
		lists := PartitionAppointments(cached, u.now())
		lists.Stale = true
		lists.FetchErr = unavailable(err)
		return lists, nil
	}

	u.attachDoctors(fetchCtx, appointments)
	u.saveSnapshot(scope, appointments)
	return PartitionAppointments(appointments, u.now()), nil
}

// attachDoctors resolves each distinct doctor once. Doctors that cannot be
// resolved are left unset.
func (u *appointmentUsecase) attachDoctors(ctx context.Context, appointments []entity.Appointment) {
	resolved := make(map[uuid.UUID]*entity.Doctor)
	for i := range appointments {
		id := appointments[i].DoctorID
		d, ok := resolved[id]
		if !ok {
			var err error
			d, err = u.doctors.GetDoctor(ctx, id)
			if err != nil {
				d = nil
			}
			resolved[id] = d
		}
		appointments[i].Doctor = d
	}
}

func (u *appointmentUsecase) snapshot(scope WatchScope) ([]entity.Appointment, bool) {
	u.snapMu.Lock()
	defer u.snapMu.Unlock()
	cached, ok := u.snapshots[scope]
	return cached, ok
}

func (u *appointmentUsecase) saveSnapshot(scope WatchScope, appointments []entity.Appointment) {
	u.snapMu.Lock()
	defer u.snapMu.Unlock()

	if _, ok := u.snapshots[scope]; !ok && len(u.snapshots) >= maxSnapshots {
		for k := range u.snapshots {
			delete(u.snapshots, k)
			break
		}
	}
	u.snapshots[scope] = append([]entity.Appointment(nil), appointments...)
}

// PartitionAppointments splits appointments at now. Slots at or after now are
// upcoming; earlier ones are past and reported as completed. Cancelled
// appointments are left out of both.
func PartitionAppointments(appointments []entity.Appointment, now time.Time) *AppointmentLists {
	lists := &AppointmentLists{
		Upcoming: []entity.Appointment{},
		Past:     []entity.Appointment{},
	}

	for _, a := range appointments {
		if a.IsCancelled() {
			continue
		}
		if a.SlotAt.Before(now) {
			a.Status = entity.AppointmentCompleted
			lists.Past = append(lists.Past, a)
			continue
		}
		lists.Upcoming = append(lists.Upcoming, a)
	}

	sort.SliceStable(lists.Upcoming, func(i, j int) bool {
		return lists.Upcoming[i].SlotAt.Before(lists.Upcoming[j].SlotAt)
	})
	sort.SliceStable(lists.Past, func(i, j int) bool {
		return lists.Past[i].SlotAt.After(lists.Past[j].SlotAt)
	})
	return lists
}

func (u *appointmentUsecase) Watch(ctx context.Context, scope WatchScope) (*Watch, error) {
	if scope.Field == entity.FieldDoctorID {
		if err := u.gate.EnsureVerifiedDoctor(ctx, scope.ID); err != nil {
			return nil, err
		}
	}
	return u.watchers.watch(ctx, scope)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
