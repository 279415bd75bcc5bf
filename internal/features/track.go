// Package features holds the track descriptor schema and the steps that turn
// raw descriptor values into clustering input: imputation, preprocessing and
// data quality reporting.
package features

// Track represents a song with its metadata and audio descriptors.
// Descriptors are nil when they were never measured.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Artist     string `json:"artist,omitempty"`
	DurationMs *int   `json:"durationMs,omitempty"`
	Popularity *int   `json:"popularity,omitempty"`

	Danceability     *float64 `json:"danceability,omitempty"`
	Energy           *float64 `json:"energy,omitempty"`
	Key              *float64 `json:"key,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty"`
	Mode             *float64 `json:"mode,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
	Tempo            *float64 `json:"tempo,omitempty"`

	// Imputed is set when any descriptor was filled in rather than measured.
	Imputed bool `json:"imputed"`
}

// Descriptor identifies one audio descriptor of a Track.
type Descriptor int

// Descriptors in matrix column order.
const (
	Danceability Descriptor = iota
	Energy
	Key
	Loudness
	Mode
	Speechiness
	Acousticness
	Instrumentalness
	Liveness
	Valence
	Tempo

	NumDescriptors = int(Tempo) + 1
)

var descriptorNames = [NumDescriptors]string{
	"danceability",
	"energy",
	"key",
	"loudness",
	"mode",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
}

// All returns every descriptor in matrix column order.
func All() []Descriptor {
	all := make([]Descriptor, NumDescriptors)
	for i := range all {
		all[i] = Descriptor(i)
	}
	return all
}

// String returns the snake_case descriptor name used in JSON and the database.
func (d Descriptor) String() string {
	if d < 0 || int(d) >= NumDescriptors {
		return "unknown"
	}
	return descriptorNames[d]
}

// ParseDescriptor looks up a descriptor by name.
func ParseDescriptor(name string) (Descriptor, bool) {
	for i, n := range descriptorNames {
		if n == name {
			return Descriptor(i), true
		}
	}
	return 0, false
}

// Field returns the address of the struct field backing d, for callers that
// scan or decode descriptors generically.
func (t *Track) Field(d Descriptor) **float64 {
	switch d {
	case Danceability:
		return &t.Danceability
	case Energy:
		return &t.Energy
	case Key:
		return &t.Key
	case Loudness:
		return &t.Loudness
	case Mode:
		return &t.Mode
	case Speechiness:
		return &t.Speechiness
	case Acousticness:
		return &t.Acousticness
	case Instrumentalness:
		return &t.Instrumentalness
	case Liveness:
		return &t.Liveness
	case Valence:
		return &t.Valence
	case Tempo:
		return &t.Tempo
	}
	panic("features: unknown descriptor")
}

// Get returns the value of d and whether it is present.
func (t *Track) Get(d Descriptor) (float64, bool) {
	p := *t.Field(d)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set stores v as the value of d.
func (t *Track) Set(d Descriptor, v float64) {
	*t.Field(d) = &v
}

// Has reports whether d is present.
func (t *Track) Has(d Descriptor) bool {
	return *t.Field(d) != nil
}

// Missing returns the number of absent descriptors.
func (t *Track) Missing() int {
	n := 0
	for _, d := range All() {
		if !t.Has(d) {
			n++
		}
	}
	return n
}

// Value returns a pointer to v, for building tracks by hand.
func Value(v float64) *float64 {
	return &v
}

// IDs returns the ids of tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
