package domain

// Resume describes a résumé file saved to local storage.
type Resume struct {
	FileName   string
	Path       string
	ExternalID int64
	Handle     string
}
