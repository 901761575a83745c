package domain

import "time"

// SyncPhase is a state of the sync pass state machine
type SyncPhase string

const (
	PhaseAuthenticating SyncPhase = "authenticating"
	PhaseEnumerating    SyncPhase = "enumerating"
	PhaseDownloading    SyncPhase = "downloading"
	PhaseCompleted      SyncPhase = "completed"
	PhaseFailed         SyncPhase = "failed"
)

// IsTerminal reports whether no further transitions happen after this phase
func (p SyncPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ProviderType identifies the storage backend
type ProviderType string

const (
	ProviderGDrive   ProviderType = "gdrive"
	ProviderOneDrive ProviderType = "onedrive"
	ProviderS3       ProviderType = "s3"
	ProviderLocal    ProviderType = "local"
)

// IsValid checks if the provider type is a known value
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderGDrive, ProviderOneDrive, ProviderS3, ProviderLocal:
		return true
	}
	return false
}

// SyncSelection is the persisted per-provider choice of what to sync
type SyncSelection struct {
	FolderID     string `json:"folder_id"`
	FolderName   string `json:"folder_name"`
	Recursive    bool   `json:"recursive"`
	AccountLabel string `json:"account_label"`
}

// ItemError records a failure isolated to one remote file
type ItemError struct {
	Name string
	Err  error
}

func (e ItemError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

// SyncOutcome summarizes one sync pass
type SyncOutcome struct {
	Provider   string
	Folder     string
	Account    string
	Phase      SyncPhase
	Scanned    int
	Downloaded int
	Skipped    int
	Bytes      int64
	Errors     []ItemError
	Err        error // terminal failure when Phase is PhaseFailed
	Started    time.Time
	Finished   time.Time
}

// Status maps the outcome to a history status: success, partial or failed
func (o SyncOutcome) Status() string {
	switch {
	case o.Phase == PhaseFailed:
		return "failed"
	case len(o.Errors) > 0:
		return "partial"
	default:
		return "success"
	}
}

// DefaultAccountLabel is shown when a provider cannot describe the signed-in account
const DefaultAccountLabel = "Connected"
