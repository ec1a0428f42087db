package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSchedule(t *testing.T) {
	now := testStart
	future := stamp(now.Add(time.Hour))
	past := stamp(now.Add(-time.Minute))

	tests := []struct {
		name string
		in   ScheduleInput
		want error
	}{
		{
			name: "everything empty reports platforms first",
			in:   ScheduleInput{},
			want: ErrNoPlatforms,
		},
		{
			name: "platforms before an unreadable time",
			in:   ScheduleInput{When: "next tuesday"},
			want: ErrNoPlatforms,
		},
		{
			name: "unknown platform",
			in:   ScheduleInput{Platforms: []Platform{"myspace"}, Caption: "x", When: future},
			want: ErrUnknownPlatform,
		},
		{
			name: "missing time before caption",
			in:   ScheduleInput{Platforms: []Platform{PlatformTikTok}},
			want: ErrScheduleTimeMissing,
		},
		{
			name: "blank time counts as missing",
			in:   ScheduleInput{Platforms: []Platform{PlatformTikTok}, Caption: "x", When: "  "},
			want: ErrScheduleTimeMissing,
		},
		{
			name: "unreadable time before caption",
			in:   ScheduleInput{Platforms: []Platform{PlatformTikTok}, When: "next tuesday"},
			want: ErrScheduleTimeInvalid,
		},
		{
			name: "past time before caption",
			in:   ScheduleInput{Platforms: []Platform{PlatformTikTok}, When: past},
			want: ErrScheduleTimeInPast,
		},
		{
			name: "now is not the future",
			in:   ScheduleInput{Platforms: []Platform{PlatformTikTok}, Caption: "x", When: stamp(now)},
			want: ErrScheduleTimeInPast,
		},
		{
			name: "blank caption",
			in:   ScheduleInput{Platforms: []Platform{PlatformInstagram}, Caption: "   ", When: future},
			want: ErrCaptionRequired,
		},
		{
			name: "valid",
			in:   ScheduleInput{Platforms: []Platform{PlatformYouTube}, Caption: "launch day", When: future},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSchedule(tt.in, now, time.UTC)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("ValidateSchedule() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidateSchedule() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseScheduleTime(t *testing.T) {
	guam, err := time.LoadLocation("Pacific/Guam")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr error
	}{
		{name: "rfc3339 keeps its offset", in: "2030-03-02T09:00:00Z", want: time.Date(2030, 3, 2, 9, 0, 0, 0, time.UTC)},
		{name: "wall clock read in zone", in: "2030-03-02T09:00", want: time.Date(2030, 3, 2, 9, 0, 0, 0, guam)},
		{name: "wall clock with seconds and space", in: "2030-03-02 09:00:30", want: time.Date(2030, 3, 2, 9, 0, 30, 0, guam)},
		{name: "empty", in: "", wantErr: ErrScheduleTimeMissing},
		{name: "words", in: "next tuesday", wantErr: ErrScheduleTimeInvalid},
		{name: "date only", in: "2030-03-02", wantErr: ErrScheduleTimeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.in, guam)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseScheduleTime(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScheduleTime(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeHashtags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "adds hash and lowercases", in: []string{"Coffee", "#BARISTA"}, want: []string{"#coffee", "#barista"}},
		{name: "drops blanks and duplicates", in: []string{"", "#", "cafe", "#Cafe"}, want: []string{"#cafe"}},
		{name: "joins words", in: []string{" slow  motion "}, want: []string{"#slowmotion"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeHashtags(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeHashtags(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeHashtags(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScheduleCharge(t *testing.T) {
	p := DefaultPricing()
	tests := []struct {
		platforms int
		want      int
	}{
		{1, 7},
		{2, 9},
		{3, 11},
	}
	for _, tt := range tests {
		if got := p.ScheduleCharge(tt.platforms); got != tt.want {
			t.Errorf("ScheduleCharge(%d) = %d, want %d", tt.platforms, got, tt.want)
		}
	}
}
