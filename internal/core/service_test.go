package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"virgil/internal/collection"
	"virgil/internal/config"
	"virgil/internal/kv"
	"virgil/internal/observability"
	"virgil/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 10, 7, 45, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, kv.Store) {
	t.Helper()
	backend := kv.NewMemory(0)
	seq := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	return NewService(backend, append(base, opts...)...), backend
}

func TestMedicationLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddMedication(ctx, domain.Medication{Dosage: "1 tab"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected invalid record for missing name, got %v", err)
	}
	med, err := svc.AddMedication(ctx, domain.Medication{Name: "Furosemide", Dosage: "10mg", Frequency: "twice daily", Times: []string{"08:00", "20:00"}, Active: true})
	if err != nil {
		t.Fatalf("add medication: %v", err)
	}
	if med.ID != "id-1" || !med.StartDate.Equal(fixedNow) {
		t.Fatalf("expected generated id and start date, got %+v", med)
	}
	if _, err := svc.AddMedication(ctx, domain.Medication{Name: "Pimobendan", Dosage: "1.25mg"}); err != nil {
		t.Fatalf("add second medication: %v", err)
	}

	active, err := svc.ActiveMedications(ctx)
	if err != nil || len(active) != 1 || active[0].Name != "Furosemide" {
		t.Fatalf("unexpected active medications %+v err=%v", active, err)
	}

	updated, err := svc.UpdateMedication(ctx, med.ID, collection.Patch{"dosage": "12.5mg", "active": false})
	if err != nil {
		t.Fatalf("update medication: %v", err)
	}
	if updated.Dosage != "12.5mg" || updated.Active || updated.Frequency != "twice daily" {
		t.Fatalf("unexpected merged medication %+v", updated)
	}
	if _, err := svc.UpdateMedication(ctx, med.ID, collection.Patch{"name": ""}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected validation failure on merged record, got %v", err)
	}
	if _, err := svc.UpdateMedication(ctx, med.ID, collection.Patch{"id": "other"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected id change to be rejected, got %v", err)
	}
	if _, err := svc.UpdateMedication(ctx, "ghost", collection.Patch{"dosage": "1"}); !errors.Is(err, collection.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}

	if err := svc.DeleteMedication(ctx, med.ID); err != nil {
		t.Fatalf("delete medication: %v", err)
	}
	meds, err := svc.ListMedications(ctx)
	if err != nil || len(meds) != 1 || meds[0].Name != "Pimobendan" {
		t.Fatalf("unexpected medications after delete %+v err=%v", meds, err)
	}
}

func TestMedicationDoseLogs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.LogMedicationDose(ctx, domain.MedicationLog{MedicationID: "id-1", ScheduledTime: "08:00"}); !errors.Is(err, collection.ErrCollectionNotFound) {
		t.Fatalf("expected missing medication collection, got %v", err)
	}
	med, err := svc.AddMedication(ctx, domain.Medication{Name: "Furosemide", Dosage: "10mg"})
	if err != nil {
		t.Fatalf("add medication: %v", err)
	}
	other, err := svc.AddMedication(ctx, domain.Medication{Name: "Clopidogrel", Dosage: "18.75mg"})
	if err != nil {
		t.Fatalf("add medication: %v", err)
	}

	cases := []struct {
		name  string
		entry domain.MedicationLog
		want  error
	}{
		{"missing medication id", domain.MedicationLog{ScheduledTime: "08:00"}, ErrInvalidRecord},
		{"missing schedule", domain.MedicationLog{MedicationID: med.ID}, ErrInvalidRecord},
		{"completed and skipped", domain.MedicationLog{MedicationID: med.ID, ScheduledTime: "08:00", Completed: true, Skipped: true}, ErrInvalidRecord},
		{"unknown medication", domain.MedicationLog{MedicationID: "ghost", ScheduledTime: "08:00"}, collection.ErrRecordNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.LogMedicationDose(ctx, tc.entry); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	given, err := svc.LogMedicationDose(ctx, domain.MedicationLog{MedicationID: med.ID, ScheduledTime: "08:00", Completed: true})
	if err != nil {
		t.Fatalf("log dose: %v", err)
	}
	if given.ActualTime != fixedNow.Format(time.RFC3339) {
		t.Fatalf("expected actual time stamped, got %q", given.ActualTime)
	}
	if _, err := svc.LogMedicationDose(ctx, domain.MedicationLog{MedicationID: other.ID, ScheduledTime: "20:00", Skipped: true}); err != nil {
		t.Fatalf("log skipped dose: %v", err)
	}

	all, err := svc.ListMedicationLogs(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 logs, got %d err=%v", len(all), err)
	}
	filtered, err := svc.ListMedicationLogs(ctx, med.ID)
	if err != nil || len(filtered) != 1 || filtered[0].ID != given.ID {
		t.Fatalf("unexpected filtered logs %+v err=%v", filtered, err)
	}
}

func TestRecordRespiratoryRate(t *testing.T) {
	metrics := observability.NewExpvarMetricsRecorder("")
	svc, _ := newTestService(t, WithMetrics(metrics))
	ctx := context.Background()

	if _, ok, err := svc.LatestRespiratoryRate(ctx); err != nil || ok {
		t.Fatalf("expected no latest measurement, ok=%v err=%v", ok, err)
	}

	cases := []struct {
		count  int
		state  domain.CatState
		rate   float64
		status domain.RespiratoryStatus
	}{
		{5, domain.CatSleeping, 10, domain.StatusAlert},
		{9, domain.CatResting, 18, domain.StatusNormal},
		{12, "", 24, domain.StatusNormal},
		{18, domain.CatAwake, 36, domain.StatusCaution},
		{21, domain.CatSleeping, 42, domain.StatusAlert},
	}
	for i, tc := range cases {
		taken := fixedNow.Add(time.Duration(i) * time.Hour)
		rec, err := svc.RecordRespiratoryRate(ctx, RespiratoryMeasurement{Count30Sec: tc.count, CatState: tc.state, TakenAt: taken})
		if err != nil {
			t.Fatalf("record count %d: %v", tc.count, err)
		}
		if rec.RatePerMinute != tc.rate || rec.Status != tc.status || rec.CatState != tc.state {
			t.Fatalf("count %d: unexpected record %+v", tc.count, rec)
		}
		if rec.Time != taken.Format("15:04") || !rec.CreatedAt.Equal(fixedNow) {
			t.Fatalf("count %d: unexpected timestamps %+v", tc.count, rec)
		}
	}

	if _, err := svc.RecordRespiratoryRate(ctx, RespiratoryMeasurement{Count30Sec: -1}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected negative count rejected, got %v", err)
	}
	if _, err := svc.RecordRespiratoryRate(ctx, RespiratoryMeasurement{Count30Sec: 10, CatState: "running"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected unknown state rejected, got %v", err)
	}

	all, err := svc.ListRespiratoryRates(ctx)
	if err != nil || len(all) != len(cases) {
		t.Fatalf("expected %d measurements, got %d err=%v", len(cases), len(all), err)
	}
	latest, ok, err := svc.LatestRespiratoryRate(ctx)
	if err != nil || !ok || latest.Count30Sec != 21 {
		t.Fatalf("unexpected latest %+v ok=%v err=%v", latest, ok, err)
	}
	if err := svc.DeleteRespiratoryRate(ctx, latest.ID); err != nil {
		t.Fatalf("delete measurement: %v", err)
	}
	latest, _, _ = svc.LatestRespiratoryRate(ctx)
	if latest.Count30Sec != 18 {
		t.Fatalf("expected previous measurement to become latest, got %+v", latest)
	}
	if metrics.Count("append", true) != int64(len(cases)) {
		t.Fatalf("expected %d appends recorded, got %d", len(cases), metrics.Count("append", true))
	}
}

func TestRecordSymptom(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := []domain.Symptom{
		{Type: "sneeze", Severity: 2},
		{Type: domain.SymptomAppetite, Severity: 0},
		{Type: domain.SymptomAppetite, Severity: 6},
	}
	for _, sym := range bad {
		if _, err := svc.RecordSymptom(ctx, sym); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected invalid symptom %+v, got %v", sym, err)
		}
	}

	older, err := svc.RecordSymptom(ctx, domain.Symptom{Type: domain.SymptomActivity, Severity: 2, Date: fixedNow.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("record symptom: %v", err)
	}
	newer, err := svc.RecordSymptom(ctx, domain.Symptom{Type: domain.SymptomBreathing, Severity: 4})
	if err != nil {
		t.Fatalf("record symptom: %v", err)
	}
	if !newer.Date.Equal(fixedNow) {
		t.Fatalf("expected default date, got %v", newer.Date)
	}
	syms, err := svc.ListSymptoms(ctx)
	if err != nil || len(syms) != 2 || syms[0].ID != newer.ID || syms[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v err=%v", syms, err)
	}
}

func TestVetVisits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	negative := -5.0
	if _, err := svc.AddVetVisit(ctx, domain.VetVisit{Reason: "checkup", Date: fixedNow, Cost: &negative}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected negative cost rejected, got %v", err)
	}
	if _, err := svc.AddVetVisit(ctx, domain.VetVisit{Reason: "checkup"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected missing date rejected, got %v", err)
	}

	next := fixedNow.AddDate(0, 1, 0)
	soon := fixedNow.AddDate(0, 0, 7)
	past := fixedNow.AddDate(0, 0, -1)
	first, err := svc.AddVetVisit(ctx, domain.VetVisit{Reason: "echo", Date: fixedNow.AddDate(0, -1, 0), VetName: "Dr. Ames", NextAppointment: &next})
	if err != nil {
		t.Fatalf("add visit: %v", err)
	}
	second, err := svc.AddVetVisit(ctx, domain.VetVisit{ID: "visit-b", Reason: "recheck", Date: fixedNow, NextAppointment: &soon})
	if err != nil || second.ID != "visit-b" {
		t.Fatalf("add visit with caller id: %+v err=%v", second, err)
	}
	if _, err := svc.AddVetVisit(ctx, domain.VetVisit{Reason: "vaccines", Date: fixedNow, NextAppointment: &past}); err != nil {
		t.Fatalf("add visit: %v", err)
	}
	if _, err := svc.AddVetVisit(ctx, domain.VetVisit{ID: "visit-b", Reason: "dup", Date: fixedNow}); !errors.Is(err, collection.ErrSerialization) {
		t.Fatalf("expected duplicate id rejected, got %v", err)
	}

	upcoming, err := svc.UpcomingVetVisits(ctx)
	if err != nil || len(upcoming) != 2 || upcoming[0].ID != second.ID || upcoming[1].ID != first.ID {
		t.Fatalf("unexpected upcoming visits %+v err=%v", upcoming, err)
	}

	updated, err := svc.UpdateVetVisit(ctx, first.ID, collection.Patch{"diagnosis": "HCM", "nextAppointment": nil})
	if err != nil {
		t.Fatalf("update visit: %v", err)
	}
	if updated.Diagnosis != "HCM" || updated.NextAppointment != nil || updated.VetName != "Dr. Ames" {
		t.Fatalf("unexpected merged visit %+v", updated)
	}
	if _, err := svc.UpdateVetVisit(ctx, first.ID, collection.Patch{"cost": -1}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected negative cost patch rejected, got %v", err)
	}
	if _, err := svc.UpdateVetVisit(ctx, first.ID, collection.Patch{"cost": "free"}); !errors.Is(err, collection.ErrSerialization) {
		t.Fatalf("expected mistyped patch rejected, got %v", err)
	}
	after, err := svc.ListVetVisits(ctx)
	if err != nil || after[0].Cost != nil || after[0].Diagnosis != "HCM" {
		t.Fatalf("rejected patches must not be written: %+v err=%v", after[0], err)
	}

	if err := svc.DeleteVetVisit(ctx, "ghost"); err != nil {
		t.Fatalf("deleting unknown visit should be a no-op: %v", err)
	}
	if err := svc.DeleteVetVisit(ctx, first.ID); err != nil {
		t.Fatalf("delete visit: %v", err)
	}
	visits, err := svc.ListVetVisits(ctx)
	if err != nil || len(visits) != 2 || visits[0].ID != second.ID {
		t.Fatalf("unexpected visits after delete %+v err=%v", visits, err)
	}
}

func TestClearAll(t *testing.T) {
	svc, backend := newTestService(t)
	ctx := context.Background()
	if _, err := svc.AddMedication(ctx, domain.Medication{Name: "Furosemide", Dosage: "10mg"}); err != nil {
		t.Fatalf("add medication: %v", err)
	}
	if _, err := svc.RecordRespiratoryRate(ctx, RespiratoryMeasurement{Count30Sec: 12}); err != nil {
		t.Fatalf("record rate: %v", err)
	}
	if err := backend.Set(ctx, "unrelated", []byte("keep")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.ClearAll(ctx); err != nil {
			t.Fatalf("clear all %d: %v", i, err)
		}
	}
	for _, key := range domain.CollectionKeys() {
		if _, err := backend.Get(ctx, key.String()); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("%s still present: %v", key, err)
		}
	}
	if v, err := backend.Get(ctx, "unrelated"); err != nil || string(v) != "keep" {
		t.Fatalf("unrelated key touched: %q err=%v", v, err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close memory service: %v", err)
	}
}

func TestListingHonoursLoadPolicy(t *testing.T) {
	ctx := context.Background()
	strict, backend := newTestService(t)
	if err := backend.Set(ctx, domain.KeySymptoms.String(), []byte("not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := strict.ListSymptoms(ctx); !errors.Is(err, collection.ErrDeserialization) {
		t.Fatalf("expected corruption surfaced, got %v", err)
	}

	lenient := NewService(backend, WithLoadPolicy(collection.TreatCorruptionAsAbsent))
	syms, err := lenient.ListSymptoms(ctx)
	if err != nil || len(syms) != 0 {
		t.Fatalf("expected empty listing, got %+v err=%v", syms, err)
	}
}

func TestNewServiceFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{
		Store:      config.StoreConfig{Driver: "fs", FSRoot: t.TempDir()},
		LoadPolicy: config.LoadPolicyAbsent,
		LogLevel:   "error",
	}
	svc, err := NewServiceFromConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if svc.Backend().Driver() != kv.DriverFilesystem {
		t.Fatalf("expected fs backend, got %s", svc.Backend().Driver())
	}
	rec, err := svc.RecordRespiratoryRate(ctx, RespiratoryMeasurement{Count30Sec: 11, CatState: domain.CatSleeping})
	if err != nil {
		t.Fatalf("record rate: %v", err)
	}
	got, ok, err := svc.LatestRespiratoryRate(ctx)
	if err != nil || !ok || got.ID != rec.ID {
		t.Fatalf("expected persisted measurement, got %+v ok=%v err=%v", got, ok, err)
	}

	bad := []config.Config{
		{Store: config.StoreConfig{Driver: "fs"}, LoadPolicy: "ignore", LogLevel: "info"},
		{Store: config.StoreConfig{Driver: "fs"}, LoadPolicy: "surface", LogLevel: "loud"},
		{Store: config.StoreConfig{Driver: "floppy"}, LoadPolicy: "surface", LogLevel: "info"},
	}
	for _, c := range bad {
		if _, err := NewServiceFromConfig(ctx, c); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}
