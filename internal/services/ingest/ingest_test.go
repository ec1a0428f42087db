// ingest_test.go: unit tests for reference parsing, transcript cleanup and
// the HTTP client.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestParseReference covers every supported link shape.
//
// Go Pattern: Table-driven tests. One slice of cases, one loop, one t.Run
// per case so failures are reported by name.
func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Reference
		wantError bool
	}{
		{
			name:  "standard youtube.com URL",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want:  Reference{PlatformYouTube, KindVideo, "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		},
		{
			name:  "youtube.com with extra params before v",
			input: "https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
			want:  Reference{PlatformYouTube, KindVideo, "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		},
		{
			name:  "youtu.be short URL",
			input: "https://youtu.be/dQw4w9WgXcQ?si=abc",
			want:  Reference{PlatformYouTube, KindVideo, "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		},
		{
			name:  "shorts URL",
			input: "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			want:  Reference{PlatformYouTube, KindVideo, "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		},
		{
			name:  "plain video ID",
			input: "  a-B_c1D2e3F ",
			want:  Reference{PlatformYouTube, KindVideo, "a-B_c1D2e3F", "https://www.youtube.com/watch?v=a-B_c1D2e3F"},
		},
		{
			name:  "youtube channel",
			input: "https://www.youtube.com/@coffeelab",
			want:  Reference{PlatformYouTube, KindAccount, "coffeelab", "https://www.youtube.com/@coffeelab"},
		},
		{
			name:  "tiktok video",
			input: "https://www.tiktok.com/@barista.jo/video/7301234567890123456?lang=en",
			want:  Reference{PlatformTikTok, KindVideo, "7301234567890123456", "https://www.tiktok.com/@barista.jo/video/7301234567890123456"},
		},
		{
			name:  "tiktok account",
			input: "https://tiktok.com/@barista.jo",
			want:  Reference{PlatformTikTok, KindAccount, "barista.jo", "https://www.tiktok.com/@barista.jo"},
		},
		{
			name:  "bare handle",
			input: "@barista.jo",
			want:  Reference{PlatformTikTok, KindAccount, "barista.jo", "https://www.tiktok.com/@barista.jo"},
		},
		{
			name:  "instagram reel",
			input: "https://www.instagram.com/reel/C1a2B3c4D5e/?igsh=xyz",
			want:  Reference{PlatformInstagram, KindVideo, "C1a2B3c4D5e", "https://www.instagram.com/reel/C1a2B3c4D5e/"},
		},
		{
			name:  "instagram profile",
			input: "https://instagram.com/coffee_lab/",
			want:  Reference{PlatformInstagram, KindAccount, "coffee_lab", "https://www.instagram.com/coffee_lab/"},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "random URL", input: "https://www.google.com", wantError: true},
		{name: "instagram explore", input: "https://www.instagram.com/explore/", wantError: true},
		{name: "too short for video ID", input: "abc", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("ParseReference(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseReference(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseVTT(t *testing.T) {
	tests := []struct {
		name string
		vtt  string
		want string
	}{
		{
			name: "basic VTT",
			vtt: `WEBVTT

00:00:01.000 --> 00:00:04.000
Hello, welcome to the video.

00:00:04.500 --> 00:00:08.000
Today we pour latte art.`,
			want: "Hello, welcome to the video. Today we pour latte art.",
		},
		{
			name: "cue ids and duplicates",
			vtt: `WEBVTT

1
00:00:01.000 --> 00:00:04.000
Hello world

2
00:00:04.000 --> 00:00:06.000
Hello world`,
			want: "Hello world",
		},
		{
			name: "tags and header metadata",
			vtt: `WEBVTT
Kind: captions
Language: en

00:01.000 --> 00:04.000
<c.colorCCCCCC>Hello</c> from <b>TikTok</b>`,
			want: "Hello from TikTok",
		},
		{name: "empty", vtt: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseVTT(tt.vtt); got != tt.want {
				t.Errorf("parseVTT() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello [Music] world", "Hello world"},
		{"Hello    world   again", "Hello world again"},
		{"  [Applause]  ", ""},
	}
	for _, tt := range tests {
		if got := cleanTranscript(tt.input); got != tt.want {
			t.Errorf("cleanTranscript(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{name: "defaults", params: Params{}.Defaults()},
		{name: "bad aspect", params: Params{AspectRatio: "21:9"}.Defaults(), wantErr: true},
		{name: "too long", params: Params{TargetDuration: 600}.Defaults(), wantErr: true},
		{name: "fill over one", params: Params{MinVoiceOverFill: 1.5}.Defaults(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientReverse(t *testing.T) {
	var got serviceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/reverse" || r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(serviceResponse{
			Prompt:        " Slow push-in on a rosetta pour ",
			TranscriptVTT: "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nwatch this [Music] pour\n",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", zerolog.Nop())
	res, err := c.Reverse(context.Background(), Request{
		Reference: "https://youtu.be/dQw4w9WgXcQ",
		Params:    Params{Platform: "tiktok", UseAudio: true},
	})
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if res.Prompt != "Slow push-in on a rosetta pour" {
		t.Errorf("Prompt = %q", res.Prompt)
	}
	if res.Transcript != "watch this pour" || res.WordCount != 3 {
		t.Errorf("Transcript = %q (%d words)", res.Transcript, res.WordCount)
	}
	if got.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" || got.Platform != PlatformYouTube {
		t.Errorf("service saw url=%q platform=%q", got.URL, got.Platform)
	}
	if got.AspectRatio != "9:16" || !got.UseAudio || got.TargetDuration != 30 {
		t.Errorf("service saw params %+v, want defaults filled", got.Params)
	}
}

func TestClientReverseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "frame sampler crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	_, err := c.Reverse(context.Background(), Request{Reference: "@barista"})
	if err == nil || !strings.Contains(err.Error(), "frame sampler crashed") {
		t.Errorf("Reverse() error = %v, want the raw service text", err)
	}

	_, err = c.Reverse(context.Background(), Request{Reference: "not a link"})
	if err == nil {
		t.Error("Reverse() accepted an unsupported reference")
	}

	_, err = NewClient("", "", zerolog.Nop()).Reverse(context.Background(), Request{Reference: "@barista"})
	if err != ErrNotConfigured {
		t.Errorf("Reverse() without URL error = %v, want ErrNotConfigured", err)
	}
}
