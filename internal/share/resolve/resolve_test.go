package resolve

import (
	"testing"

	"github.com/hubshare/shareindex/internal/share/index"
	"github.com/hubshare/shareindex/internal/share/tempshare"
	"github.com/hubshare/shareindex/internal/share/tree"
	"github.com/hubshare/shareindex/internal/tth"
)

func testHash(b byte) tth.Hash {
	var h tth.Hash
	h[0] = b
	return h
}

func buildIndex(t *testing.T, roots ...*tree.Directory) *index.Set {
	t.Helper()
	idx := index.New()
	idx.Rebuild(roots)
	return idx
}

// TestToRealResolvesADCPath verifies a nested ADC path resolves to the
// expected real filesystem path.
func TestToRealResolvesADCPath(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	sub, err := root.InsertDirectory("Albums", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.InsertFile("Track.mp3", 10, testHash(1), tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}

	idx := buildIndex(t, root)
	r := New(idx, nil, nil)

	path, err := r.ToReal("/Music/Albums/Track.mp3", false, Peer{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/music/Albums/Track.mp3" {
		t.Errorf("unexpected real path: %s", path)
	}
}

// TestToRealTTHShorthand verifies "TTH/<base32>" resolution bypasses path
// parsing entirely.
func TestToRealTTHShorthand(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	h := testHash(7)
	if _, err := root.InsertFile("Song.mp3", 20, h, tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}

	idx := buildIndex(t, root)
	r := New(idx, nil, nil)

	path, size, err := r.ToRealWithSize("TTH/"+h.String(), false, Peer{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/music/Song.mp3" || size != 20 {
		t.Errorf("unexpected resolution: path=%s size=%d", path, size)
	}
}

// TestToRealExcludedByHub verifies a hub-excluded root's files are
// rejected with ErrExcludedByHub when inSharingHub is set.
func TestToRealExcludedByHub(t *testing.T) {
	root := tree.NewRoot("/secret", "Secret")
	root.Root.ExcludedHubs["adc://hub"] = struct{}{}
	if _, err := root.InsertFile("File.bin", 1, testHash(1), tree.FileTypeAny); err != nil {
		t.Fatal(err)
	}

	idx := buildIndex(t, root)
	r := New(idx, nil, nil)

	_, err := r.ToReal("/Secret/File.bin", true, Peer{HubURL: "adc://hub"}, "")
	if err != ErrExcludedByHub {
		t.Errorf("expected ErrExcludedByHub, got %v", err)
	}
}

// TestToRealMissingPath verifies an unresolvable path returns
// ErrFileNotFound.
func TestToRealMissingPath(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	idx := buildIndex(t, root)
	r := New(idx, nil, nil)

	if _, err := r.ToReal("/Music/Nope.mp3", false, Peer{}, ""); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

// TestTempShareTakesPrecedence verifies a temp share registered for a
// session is preferred over the main index's resolution.
func TestTempShareTakesPrecedence(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	h := testHash(3)
	if _, err := root.InsertFile("Song.mp3", 5, h, tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}

	temp := tempshare.New()
	temp.Add(h, "session-1", "/tmp/offered.mp3", 99)

	idx := buildIndex(t, root)
	r := New(idx, temp, nil)

	path, size, err := r.ToRealWithSize("TTH/"+h.String(), false, Peer{}, "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/offered.mp3" || size != 99 {
		t.Errorf("expected temp share to take precedence, got path=%s size=%d", path, size)
	}
}

// TestNoAccessWhenUnauthorized verifies a peer rejected by the Authorizer
// never reaches path resolution.
func TestNoAccessWhenUnauthorized(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	idx := buildIndex(t, root)
	r := New(idx, nil, denyAll{})

	if _, err := r.ToReal("/Music", false, Peer{}, ""); err != ErrNoAccess {
		t.Errorf("expected ErrNoAccess, got %v", err)
	}
}

type denyAll struct{}

func (denyAll) Authorized(Peer) bool { return false }

// TestToVirtualFindsUnexcludedFile mirrors §8-style behavior for ToVirtual:
// a file reachable via TTH returns its virtual path when not hub-excluded.
func TestToVirtualFindsUnexcludedFile(t *testing.T) {
	root := tree.NewRoot("/music", "Music")
	h := testHash(9)
	if _, err := root.InsertFile("Song.mp3", 5, h, tree.FileTypeAudio); err != nil {
		t.Fatal(err)
	}

	idx := buildIndex(t, root)
	r := New(idx, nil, nil)

	virtual, err := r.ToVirtual(h, Peer{})
	if err != nil {
		t.Fatal(err)
	}
	if virtual != "/Music/Song.mp3" {
		t.Errorf("unexpected virtual path: %s", virtual)
	}
}
