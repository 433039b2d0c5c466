package dto

// IngestJob is the payload of one queued file in a corpus ingestion run.
type IngestJob struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
}

type IngestFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type IngestReport struct {
	Collection string          `json:"collection"`
	Discovered int             `json:"discovered"`
	Skipped    []string        `json:"skipped"`
	Loaded     int             `json:"loaded"`
	Chunks     int             `json:"chunks"`
	Failed     []IngestFailure `json:"failed"`
}
