package models

// LoadProgress is reported while the model is being loaded.
// Fraction is in [0,1]; 1 means loading finished.
type LoadProgress struct {
	Fraction float64 `json:"progress"`
	Text     string  `json:"text,omitempty"`
}

// Done reports whether this is the terminal progress report.
func (p LoadProgress) Done() bool {
	return p.Fraction >= 1
}
