package model

import (
	"fmt"
	"time"
)

// ArchiveTimestampLayout formats timestamps embedded in archive and package names.
const ArchiveTimestampLayout = "20060102_150405"

// ManifestFileName is the name of the manifest inside a deliverable package.
const ManifestFileName = "manifest.json"

// ArchiveRecord describes one archived documentation bundle.
type ArchiveRecord struct {
	Folder    string    `json:"folder"`
	Version   int       `json:"version"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveName returns {folder}_v{version}_{YYYYmmdd_HHMMSS}.zip.
func ArchiveName(folder string, version int, at time.Time) string {
	return fmt.Sprintf("%s_v%d_%s.zip", folder, version, at.Format(ArchiveTimestampLayout))
}

// PackageName returns the file name of a deliverable package.
func PackageName(repository string, at time.Time) string {
	return fmt.Sprintf("%s_documentation_%s.zip", repository, at.Format(ArchiveTimestampLayout))
}

// Ledger maps documentation folder to the last used archive version.
type Ledger map[string]int

// Next returns the version following the last used one for folder.
func (l Ledger) Next(folder string) int {
	return l[folder] + 1
}

// Clone returns a copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Merge raises every counter in l to at least the value in other.
func (l Ledger) Merge(other Ledger) {
	for k, v := range other {
		if v > l[k] {
			l[k] = v
		}
	}
}

// Manifest describes the contents of a deliverable package.
type Manifest struct {
	Repository  string   `json:"repository"`
	Timestamp   string   `json:"timestamp"`
	ReferenceID *string  `json:"reference_id"`
	Contents    []string `json:"contents"`
}

// DeliveryRequest describes one package delivery attempt.
type DeliveryRequest struct {
	Repository  string
	ArchiveDir  string
	Endpoint    string
	ReferenceID string
}
