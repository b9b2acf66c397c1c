package analysis

import "fmt"

// Defaults applied when a field is missing from the model response.
const (
	DefaultBias      = "Unknown"
	DefaultEmotion   = "Unknown"
	DefaultFraming   = "Unknown"
	DefaultOmissions = "None found"
)

// Record is the structured outcome of normalizing one model verdict about one
// text. A failed normalization leaves every semantic field empty and sets
// Error and Details instead.
type Record struct {
	ID        string `json:"id,omitempty"`
	Bias      string `json:"bias,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	Framing   string `json:"framing,omitempty"`
	Omissions string `json:"omissions,omitempty"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`

	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Failed reports whether r is an error record.
func (r Record) Failed() bool {
	return r.Error != ""
}

// Err returns nil for a normalized record, or an error wrapping ErrParse that
// carries the failure reason and diagnostic.
func (r Record) Err() error {
	if !r.Failed() {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrParse, r.Error, r.Details)
}

// WithPublished returns a copy of r with the publication timestamp attached.
// Error records are returned unchanged.
func (r Record) WithPublished(ts string) Record {
	if r.Failed() {
		return r
	}
	r.Published = ts
	return r
}

// WithSource returns a copy of r with the source attached, unless the model
// already predicted one.
func (r Record) WithSource(source string) Record {
	if r.Failed() || r.Source != "" {
		return r
	}
	r.Source = source
	return r
}

func failure(reason string, err error) Record {
	return Record{Error: reason, Details: err.Error()}
}
