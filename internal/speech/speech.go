package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Result is one recognition event. Interim results carry the best transcript
// so far and are superseded by later events; a final result closes out one
// utterance segment.
type Result struct {
	Text  string
	Final bool
}

// Recognizer turns an audio stream into recognition events. Implementations
// wrap a speech-to-text backend; the rest of the service only sees the event
// stream and never touches audio or backend specifics.
type Recognizer interface {
	// Recognize streams events until the audio ends, ctx is cancelled, or the
	// backend fails. The returned channel is closed when recognition stops.
	Recognize(ctx context.Context, audio io.Reader) (<-chan Result, error)
}

var ErrNoSpeech = errors.New("speech: no transcript produced")

// Assembler folds a recognition event stream into one query transcript.
// Interim results replace the pending segment; final results append it to the
// committed transcript. A stream that ends without any final result falls
// back to the last interim heard.
type Assembler struct {
	committed []string
	pending   string
	sawAny    bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) Feed(r Result) {
	if r.Text == "" {
		return
	}
	a.sawAny = true
	if r.Final {
		a.committed = append(a.committed, r.Text)
		a.pending = ""
		return
	}
	a.pending = r.Text
}

// Transcript returns the assembled query text.
func (a *Assembler) Transcript() string {
	parts := a.committed
	if a.pending != "" {
		parts = append(append([]string{}, a.committed...), a.pending)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Current returns the live transcript including the pending interim segment,
// for streaming partial feedback to the client.
func (a *Assembler) Current() string {
	return a.Transcript()
}

// Collect drains the recognizer stream into a final transcript. It gives up
// when no event arrives within noResultTimeout, returning whatever was
// assembled so far, or ErrNoSpeech if nothing usable arrived.
func Collect(ctx context.Context, events <-chan Result, noResultTimeout time.Duration) (string, error) {
	a := NewAssembler()
	timer := time.NewTimer(noResultTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return finish(a)
		case <-timer.C:
			return finish(a)
		case r, ok := <-events:
			if !ok {
				return finish(a)
			}
			a.Feed(r)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(noResultTimeout)
		}
	}
}

func finish(a *Assembler) (string, error) {
	t := a.Transcript()
	if t == "" {
		return "", ErrNoSpeech
	}
	return t, nil
}
