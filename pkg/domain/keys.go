package domain

// CollectionKey namespaces one persisted collection from another in the
// backing store.
type CollectionKey string

// Designated collection keys. Each domain must use its own key.
const (
	KeyMedications      CollectionKey = "virgil-medications"
	KeyMedicationLogs   CollectionKey = "virgil-medication-logs"
	KeyRespiratoryRates CollectionKey = "virgil-respiratory-rates"
	KeySymptoms         CollectionKey = "virgil-symptoms"
	KeyVetVisits        CollectionKey = "virgil-vet-visits"
)

// String returns the raw storage key.
func (k CollectionKey) String() string { return string(k) }

// CollectionKeys returns every designated key in a stable order.
func CollectionKeys() []CollectionKey {
	return []CollectionKey{
		KeyMedications,
		KeyMedicationLogs,
		KeyRespiratoryRates,
		KeySymptoms,
		KeyVetVisits,
	}
}
