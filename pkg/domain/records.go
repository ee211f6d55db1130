// Package domain defines the persisted health-tracking records, collection
// keys, and the respiratory-rate classification used by virgil.
package domain

import "time"

// Record is any value addressable by a unique string identifier within its
// collection. Implementations must serialize the identifier as the JSON
// field "id".
type Record interface {
	RecordID() string
}

// Medication describes a recurring medication schedule.
type Medication struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	Times     []string   `json:"times"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Active    bool       `json:"active"`
}

// RecordID implements Record.
func (m Medication) RecordID() string { return m.ID }

// MedicationLog records whether a scheduled dose was given.
type MedicationLog struct {
	ID            string `json:"id"`
	MedicationID  string `json:"medicationId"`
	ScheduledTime string `json:"scheduledTime"`
	ActualTime    string `json:"actualTime,omitempty"`
	Completed     bool   `json:"completed"`
	Skipped       bool   `json:"skipped"`
	Note          string `json:"note,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
}

// RecordID implements Record.
func (l MedicationLog) RecordID() string { return l.ID }

// RespiratoryRateRecord is a single resting/sleeping breath count. Status is
// derived from RatePerMinute when the record is created.
type RespiratoryRateRecord struct {
	ID            string            `json:"id"`
	Date          time.Time         `json:"date"`
	Time          string            `json:"time"`
	Count30Sec    int               `json:"count30sec"`
	RatePerMinute float64           `json:"ratePerMinute"`
	Status        RespiratoryStatus `json:"status"`
	Note          string            `json:"note,omitempty"`
	CatState      CatState          `json:"catState,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// RecordID implements Record.
func (r RespiratoryRateRecord) RecordID() string { return r.ID }

// SymptomType categorises an observed symptom.
type SymptomType string

const (
	SymptomAppetite  SymptomType = "appetite"
	SymptomActivity  SymptomType = "activity"
	SymptomBreathing SymptomType = "breathing"
	SymptomOther     SymptomType = "other"
)

// Valid reports whether t is one of the known symptom types.
func (t SymptomType) Valid() bool {
	switch t {
	case SymptomAppetite, SymptomActivity, SymptomBreathing, SymptomOther:
		return true
	}
	return false
}

// Symptom severity bounds (inclusive).
const (
	MinSymptomSeverity = 1
	MaxSymptomSeverity = 5
)

// Symptom is a free-form observation with a 1-5 severity.
type Symptom struct {
	ID          string      `json:"id"`
	Date        time.Time   `json:"date"`
	Type        SymptomType `json:"type"`
	Severity    int         `json:"severity"`
	Description string      `json:"description"`
	PhotoURL    string      `json:"photoUrl,omitempty"`
}

// RecordID implements Record.
func (s Symptom) RecordID() string { return s.ID }

// VetVisit captures a veterinary appointment.
type VetVisit struct {
	ID              string     `json:"id"`
	Date            time.Time  `json:"date"`
	VetName         string     `json:"vetName"`
	Clinic          string     `json:"clinic"`
	Reason          string     `json:"reason"`
	Diagnosis       string     `json:"diagnosis,omitempty"`
	Treatment       string     `json:"treatment,omitempty"`
	Cost            *float64   `json:"cost,omitempty"`
	NextAppointment *time.Time `json:"nextAppointment,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// RecordID implements Record.
func (v VetVisit) RecordID() string { return v.ID }

var (
	_ Record = Medication{}
	_ Record = MedicationLog{}
	_ Record = RespiratoryRateRecord{}
	_ Record = Symptom{}
	_ Record = VetVisit{}
)
