package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/infrastructure/catalog"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrDoctorUnavailable = errors.New("doctor is not accepting appointments")
	ErrClinicNotFound    = errors.New("clinic not found")
)

// DoctorFilter narrows a directory listing. Empty fields match everything.
type DoctorFilter struct {
	Specialty string
	Search    string
}

func (f DoctorFilter) matches(d *entity.Doctor) bool {
	if f.Specialty != "" && !strings.EqualFold(d.Specialty, f.Specialty) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(d.Name), q) ||
		strings.Contains(strings.ToLower(d.Specialty), q) ||
		strings.Contains(strings.ToLower(d.Hospital), q)
}

// DirectoryResult is a merged doctor listing. Stale is set when the live
// roster could not be fetched and only bundled doctors are shown.
type DirectoryResult struct {
	Doctors  []entity.Doctor
	Stale    bool
	FetchErr error
	// Skipped counts malformed records left out of the listing.
	Skipped int
}

// ClinicDirectory is a clinic with its resolved doctors.
type ClinicDirectory struct {
	Clinic  entity.Clinic
	Doctors []entity.Doctor
}

type ClinicListResult struct {
	Clinics []ClinicDirectory
	Stale   bool
}

type DirectoryUsecase interface {
	ListDoctors(ctx context.Context, filter DoctorFilter) (*DirectoryResult, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*entity.Doctor, error)
	ListFavorites(ctx context.Context, userID uuid.UUID) (*DirectoryResult, error)
	ListClinics(ctx context.Context) (*ClinicListResult, error)
	GetClinic(ctx context.Context, id uuid.UUID) (*ClinicDirectory, bool, error)
}

type directoryUsecase struct {
	log          *logrus.Logger
	bundled      *catalog.Catalog
	doctorRepo   repository.DoctorRepository
	clinicRepo   repository.ClinicRepository
	favoriteRepo repository.FavoriteRepository
	fetchTimeout time.Duration
}

func NewDirectoryUsecase(
	log *logrus.Logger,
	bundled *catalog.Catalog,
	doctorRepo repository.DoctorRepository,
	clinicRepo repository.ClinicRepository,
	favoriteRepo repository.FavoriteRepository,
	fetchTimeout time.Duration,
) DirectoryUsecase {
	if bundled == nil {
		bundled = &catalog.Catalog{}
	}
	return &directoryUsecase{
		log:          log,
		bundled:      bundled,
		doctorRepo:   doctorRepo,
		clinicRepo:   clinicRepo,
		favoriteRepo: favoriteRepo,
		fetchTimeout: fetchTimeout,
	}
}

// Reconcile merges the bundled list with the live roster. Bundled entries are
// kept as given and always win; a live record is appended only when neither
// its normalized name nor its id is already present. Live records without an
// id or name are dropped.
func Reconcile(bundled, live []entity.Doctor) []entity.Doctor {
	result := make([]entity.Doctor, 0, len(bundled)+len(live))
	names := make(map[string]struct{}, len(bundled)+len(live))
	ids := make(map[uuid.UUID]struct{}, len(bundled)+len(live))

	for _, d := range bundled {
		result = append(result, d)
		names[d.NormalizedName()] = struct{}{}
		ids[d.ID] = struct{}{}
	}

	for _, d := range live {
		if !d.Valid() {
			continue
		}
		name := d.NormalizedName()
		if _, ok := names[name]; ok {
			continue
		}
		if _, ok := ids[d.ID]; ok {
			continue
		}
		result = append(result, d)
		names[name] = struct{}{}
		ids[d.ID] = struct{}{}
	}

	return result
}

func (u *directoryUsecase) ListDoctors(ctx context.Context, filter DoctorFilter) (*DirectoryResult, error) {
	merged := u.directory(ctx)

	filtered := make([]entity.Doctor, 0, len(merged.Doctors))
	for i := range merged.Doctors {
		if filter.matches(&merged.Doctors[i]) {
			filtered = append(filtered, merged.Doctors[i])
		}
	}
	merged.Doctors = filtered
	return merged, nil
}

// directory never fails: a live fetch error degrades to the bundled list.
func (u *directoryUsecase) directory(ctx context.Context) *DirectoryResult {
	result := &DirectoryResult{Skipped: u.bundled.Skipped}

	fetchCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()

	live, err := u.doctorRepo.FindActive(fetchCtx)
	if err != nil {
		u.log.Warnf("Failed to fetch live doctor roster, serving bundled directory: %+v", err)
		result.Doctors = Reconcile(u.bundled.Doctors, nil)
		result.Stale = true
		result.FetchErr = unavailable(err)
		return result
	}

	for i := range live {
		if !live[i].Valid() {
			result.Skipped++
		}
	}
	result.Doctors = Reconcile(u.bundled.Doctors, live)
	return result
}

func (u *directoryUsecase) GetDoctor(ctx context.Context, id uuid.UUID) (*entity.Doctor, error) {
	for i := range u.bundled.Doctors {
		if u.bundled.Doctors[i].ID == id {
			d := u.bundled.Doctors[i]
			return &d, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()

	doctor, err := u.doctorRepo.FindByID(fetchCtx, id)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", id, err)
		return nil, unavailable(err)
	}
	if doctor == nil || !doctor.Valid() {
		return nil, ErrDoctorNotFound
	}
	return doctor, nil
}

func (u *directoryUsecase) ListFavorites(ctx context.Context, userID uuid.UUID) (*DirectoryResult, error) {
	ids, err := u.favoriteRepo.FindDoctorIDs(ctx, userID)
	if err != nil {
		u.log.Warnf("Failed to find favorite doctors: %+v", err)
		return nil, unavailable(err)
	}

	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	merged := u.directory(ctx)
	favorites := make([]entity.Doctor, 0, len(ids))
	for _, d := range merged.Doctors {
		if _, ok := wanted[d.ID]; ok {
			favorites = append(favorites, d)
		}
	}
	merged.Doctors = favorites
	return merged, nil
}

func (u *directoryUsecase) ListClinics(ctx context.Context) (*ClinicListResult, error) {
	clinics, err := u.clinicRepo.FindAll(ctx)
	if err != nil {
		u.log.Warnf("Failed to find clinics: %+v", err)
		return nil, unavailable(err)
	}

	merged := u.directory(ctx)
	result := &ClinicListResult{
		Clinics: make([]ClinicDirectory, 0, len(clinics)),
		Stale:   merged.Stale,
	}
	for _, c := range clinics {
		result.Clinics = append(result.Clinics, resolveClinic(c, merged.Doctors))
	}
	return result, nil
}

func (u *directoryUsecase) GetClinic(ctx context.Context, id uuid.UUID) (*ClinicDirectory, bool, error) {
	clinic, err := u.clinicRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find clinic %s: %+v", id, err)
		return nil, false, unavailable(err)
	}
	if clinic == nil {
		return nil, false, ErrClinicNotFound
	}

	merged := u.directory(ctx)
	resolved := resolveClinic(*clinic, merged.Doctors)
	return &resolved, merged.Stale, nil
}

func resolveClinic(c entity.Clinic, doctors []entity.Doctor) ClinicDirectory {
	cd := ClinicDirectory{Clinic: c, Doctors: []entity.Doctor{}}
	for i := range doctors {
		if c.Includes(&doctors[i]) {
			cd.Doctors = append(cd.Doctors, doctors[i])
		}
	}
	return cd
}
