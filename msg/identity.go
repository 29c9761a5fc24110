package msg

import (
	"crypto/rand"
	"fmt"
	"hash/fnv"
	"math/big"
	"sync/atomic"
)

// controlIDLanguagePrefix is the leading digit of every control ID minted
// by this implementation.
const controlIDLanguagePrefix = '2'

// NewActorIdentity derives an 8-hex-digit actor identity deterministically
// from the proxy host, the actor name, and a random suffix in [0, 99].
func NewActorIdentity(proxyHost, actorName string) (string, error) {
	suffix, err := randomInt(100)
	if err != nil {
		return "", err
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%d", proxyHost, actorName, suffix)
	return fmt.Sprintf("%08x", h.Sum32()), nil
}

// NewControlID derives a 9-digit control ID for a proxy connection: a
// fixed language-prefix digit, three digits derived from a hash of the
// local host address, and five random digits.
func NewControlID(localHost string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(localHost))
	hostDigits := h.Sum32() % 1000

	randPart, err := randomInt(100000)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%c%03d%05d", controlIDLanguagePrefix, hostDigits, randPart), nil
}

func randomInt(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("msg: generating random identity component: %w", err)
	}
	return v.Int64(), nil
}

// replyToSeqMin and replyToSeqWidth bound the process-global reply-to
// sequence counter's output range: [replyToSeqMin, replyToSeqMin+width).
// The underlying counter is a raw uint32 that overflows the ordinary Go
// way (wrapping to 0); that raw value is folded into the output range by
// taking it modulo width.
const (
	replyToSeqMin   = 2_000_000
	replyToSeqWidth = 1_000_000
)

// ReplySequence is a process-global, wrap-around counter used to mint
// unique sync-publish reply-to topics. The zero value is ready to use.
type ReplySequence struct {
	raw atomic.Uint32
}

// NewReplySequence returns a ready-to-use sequence.
func NewReplySequence() *ReplySequence {
	return &ReplySequence{}
}

// SetRaw pins the underlying raw counter to v; used by tests to exercise
// the uint32 wrap-around boundary.
func (s *ReplySequence) SetRaw(v uint32) {
	s.raw.Store(v)
}

// Next returns the next sequence number in [replyToSeqMin, replyToSeqMin+
// replyToSeqWidth). The raw counter overflows silently like any Go
// uint32, and that wrapped value is folded into the output range.
func (s *ReplySequence) Next() int64 {
	raw := s.raw.Add(1)
	return replyToSeqMin + int64(raw%replyToSeqWidth)
}

// NewReplyTo mints a fresh reply-to topic string "ret:<actorIdentity>:<seq>"
// unique (within the sequence's wrap window) to the calling actor.
func NewReplyTo(actorIdentity string, seq *ReplySequence) string {
	return fmt.Sprintf("ret:%s:%d", actorIdentity, seq.Next())
}
