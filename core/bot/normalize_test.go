package bot

import "testing"

func TestNormalizeLevelLabel(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "blank", text: "   ", want: ""},
		{name: "grade", text: "grade 8", want: "Class 8"},
		{name: "grade: compact", text: "grade8", want: "Class 8"},
		{name: "grade: mixed case", text: "GrAdE 3", want: "Class 3"},
		{name: "class", text: "class 6", want: "Class 6"},
		{name: "class: canonical", text: "Class 6", want: "Class 6"},
		{name: "form", text: "form 2", want: "Form 2"},
		{name: "jss", text: "jss 1", want: "JSS 1"},
		{name: "pp", text: "pp2", want: "PP 2"},
		{name: "standard", text: "standard 7", want: "Standard 7"},
		{name: "bare number", text: "8", want: "8"},
		{name: "unknown label", text: "nursery red", want: "Nursery Red"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLevelLabel(tt.text); got != tt.want {
				t.Errorf("NormalizeLevelLabel() = %q; want %q", got, tt.want)
			}
			// running it again must be a no-op
			if got := NormalizeLevelLabel(tt.want); got != tt.want {
				t.Errorf("NormalizeLevelLabel() not idempotent: f(%q) = %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeStreamName(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		level  string
		want   string
		wantOK bool
	}{
		{name: "empty", text: "", level: "Class 8", want: "", wantOK: true},
		{name: "simple", text: "blue", level: "Class 8", want: "Blue", wantOK: true},
		{name: "single letter", text: "b", level: "Class 8", want: "B", wantOK: true},
		{name: "level prefix stripped", text: "8 Blue", level: "Class 8", want: "Blue", wantOK: true},
		{name: "other number kept", text: "7 Blue", level: "Class 8", want: "7 Blue", wantOK: true},
		{name: "numeric residue", text: "8", level: "Class 8", want: "", wantOK: false},
		{name: "numeric words", text: "8 8", level: "Class 8", want: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeStreamName(tt.text, tt.level)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeStreamName() = (%q, %v); want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeClassName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "compound", text: "grade8a", want: "Grade 8A"},
		{name: "compound: spaced", text: "grade 8 a", want: "Grade 8A"},
		{name: "compound: jss", text: "jss1b", want: "JSS 1B"},
		{name: "short", text: "8a", want: "8A"},
		{name: "plain", text: "class 6 blue", want: "Class 6 Blue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeClassName(tt.text); got != tt.want {
				t.Errorf("NormalizeClassName() = %q; want %q", got, tt.want)
			}
			if got := NormalizeClassName(tt.want); got != tt.want {
				t.Errorf("NormalizeClassName() not idempotent: f(%q) = %q", tt.want, got)
			}
		})
	}
}
