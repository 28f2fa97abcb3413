// Package catalog holds the curated doctor list that ships with the service
// and is shown even when the live directory cannot be reached.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"clinic-booking/internal/domain/entity"

	"github.com/goccy/go-json"
)

//go:embed doctors.json
var bundledDoctors []byte

// Catalog is a decoded bundled doctor list.
type Catalog struct {
	Doctors []entity.Doctor
	// Skipped counts entries that could not be decoded or lacked an id/name.
	Skipped int
}

// Load decodes the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	data := bundledDoctors
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read doctor catalog %s: %w", path, err)
		}
		data = b
	}
	return Decode(data)
}

// Decode parses entries one by one so a single bad record does not discard
// the rest of the list.
func Decode(data []byte) (*Catalog, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode doctor catalog: %w", err)
	}

	c := &Catalog{Doctors: make([]entity.Doctor, 0, len(raw))}
	for _, item := range raw {
		var d entity.Doctor
		if err := json.Unmarshal(item, &d); err != nil || !d.Valid() {
			c.Skipped++
			continue
		}
		d.Source = entity.DoctorSourceBundled
		d.IsActive = true
		d.VerificationStatus = entity.VerificationVerified
		c.Doctors = append(c.Doctors, d)
	}
	return c, nil
}
