package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJobName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		conversationID string
		eventID        string
		want           string
	}{
		{
			name:           "plain ids",
			conversationID: "15550001111",
			eventID:        "abc123",
			want:           "tr-15550001111-abc123",
		},
		{
			name:           "unsafe characters replaced",
			conversationID: "1555+000",
			eventID:        "wamid.HBgL=",
			want:           "tr-1555-000-wamid-HBgL-",
		},
	}
	for _, tc := range cases {
		if got := JobName(tc.conversationID, tc.eventID); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestJobNameCapsLength(t *testing.T) {
	t.Parallel()
	got := JobName(strings.Repeat("1", 150), strings.Repeat("a", 150))
	if len(got) != maxJobNameLen {
		t.Fatalf("len=%d want=%d", len(got), maxJobNameLen)
	}
}

func TestFormatForMime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mime string
		want string
	}{
		{mime: "audio/ogg; codecs=opus", want: "ogg"},
		{mime: "audio/mpeg", want: "mp3"},
		{mime: "audio/mp4", want: "mp4"},
		{mime: "audio/wav", want: "wav"},
		{mime: "", want: "ogg"},
		{mime: "audio/x-unknown", want: "ogg"},
	}
	for _, tc := range cases {
		if got := FormatForMime(tc.mime); got != tc.want {
			t.Fatalf("mime=%q got=%q want=%q", tc.mime, got, tc.want)
		}
	}
}

func TestStartSubmitsJob(t *testing.T) {
	t.Parallel()
	var captured StartRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42"})
	}))
	defer srv.Close()

	tr := NewTranscriber(nil, srv.URL, []string{"es-US", "en-US"}, 0)
	jobID, err := tr.Start(context.Background(), "https://media.test/a.ogg", "audio/ogg; codecs=opus", "tr-1-2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if jobID != "job-42" {
		t.Fatalf("job id %q", jobID)
	}
	if captured.MediaRef != "https://media.test/a.ogg" || captured.MediaFormat != "ogg" {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(captured.Languages) != 2 {
		t.Fatalf("languages not forwarded: %+v", captured.Languages)
	}
}

func TestStartRequiresJobID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(nil, srv.URL, nil, 0)
	if _, err := tr.Start(context.Background(), "ref", "audio/ogg", "n"); err == nil {
		t.Fatal("want error when job system returns no id")
	}
}

func TestStartRequiresMediaRef(t *testing.T) {
	t.Parallel()
	tr := NewTranscriber(nil, "http://unused", nil, 0)
	if _, err := tr.Start(context.Background(), " ", "audio/ogg", "n"); err == nil {
		t.Fatal("want error for empty media ref")
	}
}
