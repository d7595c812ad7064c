package feed

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func loadPage(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/page.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	records, err := Codec{}.ParsePage(loadPage(t))
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	want := "http://feed.example.org/api/content/show?id=FNG3F71FC8QXBHSD&key="
	if records[0].ExternalID != want {
		t.Fatalf("unexpected id: %s", records[0].ExternalID)
	}
	if !json.Valid(records[0].Source) {
		t.Fatalf("source is not valid json: %s", records[0].Source)
	}
}

func TestParsePageMalformed(t *testing.T) {
	t.Parallel()

	_, err := Codec{}.ParsePage([]byte("Bad json"))
	if !errors.Is(err, ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
}

func TestDecodeEntry(t *testing.T) {
	t.Parallel()

	records, err := Codec{}.ParsePage(loadPage(t))
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}

	entry, err := Codec{}.DecodeEntry(records[0].Source)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}

	if entry.Title != "Amy Schumer Rejects Glamour's Plus-Size Label" {
		t.Fatalf("unexpected title: %s", entry.Title)
	}
	if entry.Description != "Comedy, The, Tonight, Show, interview" {
		t.Fatalf("unexpected description: %q", entry.Description)
	}
	if entry.VideoURL != "https://player.example.org/?id=FNG3F71FC8QXBHSD" {
		t.Fatalf("unexpected video url: %s", entry.VideoURL)
	}
	if entry.VideoKey() != "FNG3F71FC8QXBHSD" {
		t.Fatalf("unexpected video key: %s", entry.VideoKey())
	}
	if entry.Duration != 97 {
		t.Fatalf("unexpected duration: %d", entry.Duration)
	}
	if entry.ProviderVideoID != "148221234" {
		t.Fatalf("unexpected provider id: %s", entry.ProviderVideoID)
	}
	if len(entry.Labels) != 3 || entry.Labels[0] != "Television-Talk_Shows" {
		t.Fatalf("unexpected labels: %v", entry.Labels)
	}

	second, err := Codec{}.DecodeEntry(records[1].Source)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	if second.Duration != 0 {
		t.Fatalf("null duration should be zero, got %d", second.Duration)
	}
	if second.Description != "Walk-off & celebration" {
		t.Fatalf("plain description changed: %q", second.Description)
	}
}

func TestFlexInt(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		`97`:     97,
		`"97"`:   97,
		`""`:     0,
		`null`:   0,
		`"abc"`:  0,
		`12.9`:   12,
		`" 42 "`: 42,
	}
	for input, want := range cases {
		var got flexInt
		if err := json.Unmarshal([]byte(input), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if int64(got) != want {
			t.Fatalf("flexInt(%s) = %d, want %d", input, got, want)
		}
	}
}
