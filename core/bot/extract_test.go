package bot

import (
	"reflect"
	"testing"
)

func TestParseLevelAndStream(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantLevel  string
		wantStream string
	}{
		{name: "level and stream", text: "create grade 8 blue", wantLevel: "Grade 8", wantStream: "Blue"},
		{name: "level only", text: "create grade 8", wantLevel: "Grade 8", wantStream: ""},
		{name: "stop word not a stream", text: "create grade 8 with blue", wantLevel: "Grade 8", wantStream: ""},
		{name: "form", text: "add form 2 east please", wantLevel: "Form 2", wantStream: "East"},
		{name: "jss", text: "make jss1 gamma", wantLevel: "JSS 1", wantStream: "Gamma"},
		{name: "compact suffix", text: "create grade 8b", wantLevel: "Grade 8", wantStream: ""},
		{name: "bare level and stream", text: "8 blue", wantLevel: "8", wantStream: "Blue"},
		{name: "bare level only", text: "5", wantLevel: "5", wantStream: ""},
		{name: "bare level with stop word", text: "8 with blue", wantLevel: "8", wantStream: ""},
		{name: "no level", text: "hello there", wantLevel: "", wantStream: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, stream := ParseLevelAndStream(tt.text)
			if level != tt.wantLevel || stream != tt.wantStream {
				t.Errorf("ParseLevelAndStream() = (%q, %q); want (%q, %q)", level, stream, tt.wantLevel, tt.wantStream)
			}
		})
	}
}

func TestExtractAllStreams(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		level string
		want  []string
	}{
		{
			name:  "two streams",
			text:  "create grade 7 with streams blue and red",
			level: "7",
			want:  []string{"Blue", "Red"},
		},
		{
			name:  "comma separated",
			text:  "add blue, red and green to class 6",
			level: "Class 6",
			want:  []string{"Blue", "Red", "Green"},
		},
		{
			name:  "duplicates collapse in order",
			text:  "streams red, blue, RED and Blue",
			level: "Class 6",
			want:  []string{"Red", "Blue"},
		},
		{
			name:  "level number not a stream",
			text:  "create grade 7",
			level: "7",
			want:  nil,
		},
		{
			name:  "single letters",
			text:  "add streams b and c",
			level: "Class 4",
			want:  []string{"B", "C"},
		},
		{
			name:  "unknown words skipped",
			text:  "add streams kivulini and blue",
			level: "Class 4",
			want:  []string{"Blue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAllStreams(tt.text, tt.level); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractAllStreams() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestExtractorExtraWords(t *testing.T) {
	e := NewExtractor("Kivulini", " mlimani ")

	got := e.ExtractAllStreams("add streams kivulini and mlimani to grade 3", "Grade 3")
	want := []string{"Kivulini", "Mlimani"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractAllStreams() = %v; want %v", got, want)
	}

	// the default vocabulary is untouched
	if got := ExtractAllStreams("add stream kivulini", ""); got != nil {
		t.Errorf("default extractor recognized %v", got)
	}
}
