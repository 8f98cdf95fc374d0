package alert

import (
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// ErrPlaybackBlocked means no user gesture has unlocked audio yet.
var ErrPlaybackBlocked = errors.New("audio locked: user gesture required")

// Player is the opaque audio primitive: load an asset into a decoded buffer,
// play a buffer fire-and-forget.
type Player interface {
	Load(asset string) ([]byte, error)
	Play(buf []byte) error
}

// AudioSession gates playback behind the first user gesture. Playback
// engines refuse to make noise until a human has interacted; until then
// every Play is blocked and the caller gets a call-to-action instead of
// silent failure.
type AudioSession struct {
	player   Player
	unlocked atomic.Bool

	// OnBlocked is invoked (once per blocked attempt) when playback cannot
	// start because the session is still locked.
	OnBlocked func()
}

func NewAudioSession(p Player) *AudioSession {
	return &AudioSession{player: p}
}

// Unlock marks the session usable. Wired to the first click/touch/key event;
// calling it again is a no-op.
func (s *AudioSession) Unlock() {
	s.unlocked.Store(true)
}

func (s *AudioSession) Unlocked() bool { return s.unlocked.Load() }

func (s *AudioSession) Load(asset string) ([]byte, error) {
	return s.player.Load(asset)
}

// Play never propagates an error: a broken speaker must not take down the
// sync loops. Blocked playback surfaces through OnBlocked.
func (s *AudioSession) Play(buf []byte) {
	if !s.unlocked.Load() {
		log.Printf("audio: %v", ErrPlaybackBlocked)
		if s.OnBlocked != nil {
			s.OnBlocked()
		}
		return
	}
	if err := s.player.Play(buf); err != nil {
		log.Printf("audio play: %v", err)
	}
}

// BellPlayer rings the terminal bell. Good enough for a kitchen box without
// a sound card; real displays swap in a proper player.
type BellPlayer struct {
	W io.Writer

	mu sync.Mutex
}

func (b *BellPlayer) Load(asset string) ([]byte, error) {
	return []byte("\a"), nil
}

func (b *BellPlayer) Play(buf []byte) error {
	w := b.W
	if w == nil {
		w = os.Stdout
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := w.Write(buf)
	return err
}
