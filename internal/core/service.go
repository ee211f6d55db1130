// Package core implements the health-tracker operations on top of typed
// collection stores, one per designated collection key.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"virgil/internal/collection"
	"virgil/internal/config"
	"virgil/internal/kv"
	"virgil/internal/observability"
	"virgil/pkg/domain"
)

// ErrInvalidRecord is returned when a record fails field validation before
// it reaches the store.
var ErrInvalidRecord = errors.New("invalid record")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	tracer     observability.Tracer
	loadPolicy collection.LoadPolicy
	newID      func() string
	now        func() time.Time
}

// WithLogger sets the logger shared by the service and its stores.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithMetrics records every store operation.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithTracer traces every store operation.
func WithTracer(t observability.Tracer) Option {
	return func(o *serviceOptions) { o.tracer = t }
}

// WithLoadPolicy selects how listing operations treat corrupt collections.
func WithLoadPolicy(p collection.LoadPolicy) Option {
	return func(o *serviceOptions) { o.loadPolicy = p }
}

// WithIDGenerator replaces the random UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *serviceOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(o *serviceOptions) {
		if fn != nil {
			o.now = fn
		}
	}
}

// Service records medications, doses, respiratory rates, symptoms and vet
// visits. Each mutation is a read-modify-write of one collection and is not
// serialized against concurrent mutations of the same collection.
type Service struct {
	backend        kv.Store
	logger         *slog.Logger
	newID          func() string
	now            func() time.Time
	medications    *collection.Store[domain.Medication]
	medicationLogs *collection.Store[domain.MedicationLog]
	respiratory    *collection.Store[domain.RespiratoryRateRecord]
	symptoms       *collection.Store[domain.Symptom]
	vetVisits      *collection.Store[domain.VetVisit]
}

// NewService builds a service whose collections all live in backend.
func NewService(backend kv.Store, opts ...Option) *Service {
	o := serviceOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	storeOpts := []collection.Option{
		collection.WithLogger(o.logger),
		collection.WithMetrics(o.metrics),
		collection.WithTracer(o.tracer),
		collection.WithLoadPolicy(o.loadPolicy),
	}
	return &Service{
		backend:        backend,
		logger:         o.logger,
		newID:          o.newID,
		now:            o.now,
		medications:    collection.New[domain.Medication](backend, storeOpts...),
		medicationLogs: collection.New[domain.MedicationLog](backend, storeOpts...),
		respiratory:    collection.New[domain.RespiratoryRateRecord](backend, storeOpts...),
		symptoms:       collection.New[domain.Symptom](backend, storeOpts...),
		vetVisits:      collection.New[domain.VetVisit](backend, storeOpts...),
	}
}

// NewServiceFromConfig opens the configured backend and applies the
// configured load policy and log level. Options override configuration.
func NewServiceFromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	policy, err := collection.ParseLoadPolicy(cfg.LoadPolicy)
	if err != nil {
		return nil, err
	}
	backend, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	base := []Option{WithLogger(logger), WithLoadPolicy(policy)}
	svc := NewService(backend, append(base, opts...)...)
	svc.logger.InfoContext(ctx, "tracker service ready", "driver", string(backend.Driver()), "load_policy", policy.String())
	return svc, nil
}

// Backend returns the underlying key-value store.
func (s *Service) Backend() kv.Store {
	return s.backend
}

// Close releases the backend when it holds resources.
func (s *Service) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ClearAll removes every designated collection.
func (s *Service) ClearAll(ctx context.Context) error {
	clearers := map[domain.CollectionKey]func(context.Context, string) error{
		domain.KeyMedications:      s.medications.Clear,
		domain.KeyMedicationLogs:   s.medicationLogs.Clear,
		domain.KeyRespiratoryRates: s.respiratory.Clear,
		domain.KeySymptoms:         s.symptoms.Clear,
		domain.KeyVetVisits:        s.vetVisits.Clear,
	}
	var errs []error
	for _, key := range domain.CollectionKeys() {
		if err := clearers[key](ctx, key.String()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func list[T domain.Record](ctx context.Context, store *collection.Store[T], key domain.CollectionKey) ([]T, error) {
	records, _, err := store.Load(ctx, key.String())
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) stamp(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return s.newID()
}

// AddMedication validates and appends a medication schedule. A blank ID is
// replaced by a generated one.
func (s *Service) AddMedication(ctx context.Context, med domain.Medication) (domain.Medication, error) {
	if err := validateMedication(med); err != nil {
		return domain.Medication{}, err
	}
	med.ID = s.stamp(med.ID)
	if med.StartDate.IsZero() {
		med.StartDate = s.now().UTC()
	}
	if err := s.medications.Append(ctx, domain.KeyMedications.String(), med); err != nil {
		return domain.Medication{}, err
	}
	return med, nil
}

// ListMedications returns every medication in insertion order.
func (s *Service) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	return list(ctx, s.medications, domain.KeyMedications)
}

// ActiveMedications returns the medications currently marked active.
func (s *Service) ActiveMedications(ctx context.Context) ([]domain.Medication, error) {
	meds, err := s.ListMedications(ctx)
	if err != nil {
		return nil, err
	}
	active := meds[:0:0]
	for _, m := range meds {
		if m.Active {
			active = append(active, m)
		}
	}
	return active, nil
}

// UpdateMedication merges patch into the medication. The merged record is
// validated before it is written.
func (s *Service) UpdateMedication(ctx context.Context, id string, patch collection.Patch) (domain.Medication, error) {
	if err := checkPatchID(patch, id); err != nil {
		return domain.Medication{}, err
	}
	return s.medications.Update(ctx, domain.KeyMedications.String(), id, patch, validateMedication)
}

// DeleteMedication removes the medication. Dose logs referencing it are kept.
func (s *Service) DeleteMedication(ctx context.Context, id string) error {
	return s.medications.Delete(ctx, domain.KeyMedications.String(), id)
}

// LogMedicationDose appends a dose entry for an existing medication.
func (s *Service) LogMedicationDose(ctx context.Context, entry domain.MedicationLog) (domain.MedicationLog, error) {
	if strings.TrimSpace(entry.MedicationID) == "" {
		return domain.MedicationLog{}, invalid("medication id is required")
	}
	if strings.TrimSpace(entry.ScheduledTime) == "" {
		return domain.MedicationLog{}, invalid("scheduled time is required")
	}
	if entry.Completed && entry.Skipped {
		return domain.MedicationLog{}, invalid("a dose cannot be both completed and skipped")
	}
	if _, err := s.medications.Get(ctx, domain.KeyMedications.String(), entry.MedicationID); err != nil {
		return domain.MedicationLog{}, err
	}
	entry.ID = s.stamp(entry.ID)
	if entry.Completed && entry.ActualTime == "" {
		entry.ActualTime = s.now().UTC().Format(time.RFC3339)
	}
	if err := s.medicationLogs.Append(ctx, domain.KeyMedicationLogs.String(), entry); err != nil {
		return domain.MedicationLog{}, err
	}
	return entry, nil
}

// ListMedicationLogs returns dose logs, optionally restricted to one
// medication when medicationID is not empty.
func (s *Service) ListMedicationLogs(ctx context.Context, medicationID string) ([]domain.MedicationLog, error) {
	logs, err := list(ctx, s.medicationLogs, domain.KeyMedicationLogs)
	if err != nil || medicationID == "" {
		return logs, err
	}
	filtered := logs[:0:0]
	for _, l := range logs {
		if l.MedicationID == medicationID {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// RespiratoryMeasurement is a breath count taken over MeasurementDuration.
type RespiratoryMeasurement struct {
	Count30Sec int
	CatState   domain.CatState
	Note       string
	// TakenAt defaults to the service clock.
	TakenAt time.Time
}

// RecordRespiratoryRate converts the count to a per-minute rate, classifies
// it and appends the resulting record.
func (s *Service) RecordRespiratoryRate(ctx context.Context, m RespiratoryMeasurement) (domain.RespiratoryRateRecord, error) {
	if m.Count30Sec < 0 {
		return domain.RespiratoryRateRecord{}, invalid("breath count must not be negative, got %d", m.Count30Sec)
	}
	if !m.CatState.Valid() {
		return domain.RespiratoryRateRecord{}, invalid("unknown cat state %q", m.CatState)
	}
	now := s.now().UTC()
	taken := m.TakenAt
	if taken.IsZero() {
		taken = now
	}
	rate := domain.RatePerMinute(m.Count30Sec)
	rec := domain.RespiratoryRateRecord{
		ID:            s.newID(),
		Date:          taken,
		Time:          taken.Format("15:04"),
		Count30Sec:    m.Count30Sec,
		RatePerMinute: rate,
		Status:        domain.ClassifyRespiratoryRate(rate),
		Note:          m.Note,
		CatState:      m.CatState,
		CreatedAt:     now,
	}
	if err := s.respiratory.Append(ctx, domain.KeyRespiratoryRates.String(), rec); err != nil {
		return domain.RespiratoryRateRecord{}, err
	}
	if rec.Status == domain.StatusAlert {
		s.logger.WarnContext(ctx, "respiratory rate outside safe range", "id", rec.ID, "rate", rec.RatePerMinute)
	}
	return rec, nil
}

// ListRespiratoryRates returns measurements in insertion order.
func (s *Service) ListRespiratoryRates(ctx context.Context) ([]domain.RespiratoryRateRecord, error) {
	return list(ctx, s.respiratory, domain.KeyRespiratoryRates)
}

// LatestRespiratoryRate returns the measurement with the latest Date. ok is
// false when nothing has been recorded.
func (s *Service) LatestRespiratoryRate(ctx context.Context) (domain.RespiratoryRateRecord, bool, error) {
	records, err := s.ListRespiratoryRates(ctx)
	if err != nil || len(records) == 0 {
		return domain.RespiratoryRateRecord{}, false, err
	}
	latest := records[0]
	for _, r := range records[1:] {
		if !r.Date.Before(latest.Date) {
			latest = r
		}
	}
	return latest, true, nil
}

// DeleteRespiratoryRate removes one measurement.
func (s *Service) DeleteRespiratoryRate(ctx context.Context, id string) error {
	return s.respiratory.Delete(ctx, domain.KeyRespiratoryRates.String(), id)
}

// RecordSymptom validates and appends a symptom observation.
func (s *Service) RecordSymptom(ctx context.Context, sym domain.Symptom) (domain.Symptom, error) {
	if !sym.Type.Valid() {
		return domain.Symptom{}, invalid("unknown symptom type %q", sym.Type)
	}
	if sym.Severity < domain.MinSymptomSeverity || sym.Severity > domain.MaxSymptomSeverity {
		return domain.Symptom{}, invalid("severity %d outside %d..%d", sym.Severity, domain.MinSymptomSeverity, domain.MaxSymptomSeverity)
	}
	sym.ID = s.stamp(sym.ID)
	if sym.Date.IsZero() {
		sym.Date = s.now().UTC()
	}
	if err := s.symptoms.Append(ctx, domain.KeySymptoms.String(), sym); err != nil {
		return domain.Symptom{}, err
	}
	return sym, nil
}

// ListSymptoms returns symptoms newest first.
func (s *Service) ListSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	syms, err := list(ctx, s.symptoms, domain.KeySymptoms)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Date.After(syms[j].Date) })
	return syms, nil
}

// AddVetVisit validates and appends a vet visit.
func (s *Service) AddVetVisit(ctx context.Context, visit domain.VetVisit) (domain.VetVisit, error) {
	if err := validateVetVisit(visit); err != nil {
		return domain.VetVisit{}, err
	}
	visit.ID = s.stamp(visit.ID)
	if err := s.vetVisits.Append(ctx, domain.KeyVetVisits.String(), visit); err != nil {
		return domain.VetVisit{}, err
	}
	return visit, nil
}

// ListVetVisits returns visits in insertion order.
func (s *Service) ListVetVisits(ctx context.Context) ([]domain.VetVisit, error) {
	return list(ctx, s.vetVisits, domain.KeyVetVisits)
}

// UpcomingVetVisits returns visits with a next appointment at or after the
// service clock, soonest first.
func (s *Service) UpcomingVetVisits(ctx context.Context) ([]domain.VetVisit, error) {
	visits, err := s.ListVetVisits(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	upcoming := visits[:0:0]
	for _, v := range visits {
		if v.NextAppointment != nil && !v.NextAppointment.Before(now) {
			upcoming = append(upcoming, v)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].NextAppointment.Before(*upcoming[j].NextAppointment)
	})
	return upcoming, nil
}

// UpdateVetVisit merges patch into the visit. The merged record is validated
// before it is written.
func (s *Service) UpdateVetVisit(ctx context.Context, id string, patch collection.Patch) (domain.VetVisit, error) {
	if err := checkPatchID(patch, id); err != nil {
		return domain.VetVisit{}, err
	}
	return s.vetVisits.Update(ctx, domain.KeyVetVisits.String(), id, patch, validateVetVisit)
}

// DeleteVetVisit removes the visit.
func (s *Service) DeleteVetVisit(ctx context.Context, id string) error {
	return s.vetVisits.Delete(ctx, domain.KeyVetVisits.String(), id)
}
