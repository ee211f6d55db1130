package core

import (
	"encoding/json"
	"strings"

	"virgil/internal/collection"
	"virgil/pkg/domain"
)

func validateMedication(m domain.Medication) error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return invalid("medication name is required")
	case strings.TrimSpace(m.Dosage) == "":
		return invalid("dosage for %s is required", m.Name)
	case m.EndDate != nil && !m.StartDate.IsZero() && m.EndDate.Before(m.StartDate):
		return invalid("medication %s ends before it starts", m.Name)
	}
	return nil
}

func validateVetVisit(v domain.VetVisit) error {
	switch {
	case strings.TrimSpace(v.Reason) == "":
		return invalid("visit reason is required")
	case v.Date.IsZero():
		return invalid("visit date is required")
	case v.Cost != nil && *v.Cost < 0:
		return invalid("visit cost must not be negative")
	}
	return nil
}

// checkPatchID rejects patches that would move a record to another id.
func checkPatchID(patch collection.Patch, id string) error {
	v, ok := patch["id"]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return invalid("patch id: %v", err)
	}
	var patched string
	if err := json.Unmarshal(raw, &patched); err != nil || patched != id {
		return invalid("patch cannot change record id %s", id)
	}
	return nil
}
