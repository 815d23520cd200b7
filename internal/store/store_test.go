package store

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetTrack(t *testing.T) {
	s := openTestStore(t)

	track := &Track{
		ID:         "t1",
		Prompt:     "warm jazz trio",
		Seconds:    60,
		SampleRate: 32000,
		Samples:    60 * 32000,
		State:      "done",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Put(track); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Prompt != track.Prompt || got.Seconds != 60 || got.State != "done" {
		t.Errorf("Get returned %+v, want stored record", got)
	}
}

func TestGetMissingTrack(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Get(missing) = %v, want ErrTrackNotFound", err)
	}
	if _, err := s.GetAudio("nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("GetAudio(missing) = %v, want ErrTrackNotFound", err)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	s := openTestStore(t)

	wav := []byte("RIFF....WAVE")
	if err := s.PutAudio("t1", wav); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	got, err := s.GetAudio("t1")
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if string(got) != string(wav) {
		t.Errorf("GetAudio = %q, want %q", got, wav)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		err := s.Put(&Track{ID: id, State: "done", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	tracks, err := s.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("List returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].ID != "c" || tracks[1].ID != "b" {
		t.Errorf("List order = [%s %s], want [c b]", tracks[0].ID, tracks[1].ID)
	}
}
