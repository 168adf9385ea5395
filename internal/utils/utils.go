package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	mrand "math/rand"
	"strings"
	"unicode/utf8"

	"github.com/sundialgames/weekender-backend/internal"
)

// roomCodeAlphabet omits the lookalike characters 0/O, 1/I/L so codes can be
// read aloud and retyped without confusion.
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateRoomCode samples a random code of the given length from the
// ambiguity-free alphabet.
func GenerateRoomCode(length int) string {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to math/rand rather than refuse to create rooms.
			sb.WriteByte(roomCodeAlphabet[mrand.Intn(len(roomCodeAlphabet))])
			continue
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String()
}

// GenerateToken returns a random lowercase hex secret of byteLen*2 characters.
func GenerateToken(byteLen int) string {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = byte(mrand.Intn(256))
		}
	}
	return hex.EncodeToString(buf)
}

// ValidProfileToken reports whether tok is a plausible bearer token: hex,
// 16 to 128 characters.
func ValidProfileToken(tok string) bool {
	if len(tok) < 16 || len(tok) > 128 {
		return false
	}
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// RollDice returns five fresh die faces in 1..6.
func RollDice() []int {
	roll := make([]int, internal.DiceCount)
	for i := range roll {
		roll[i] = mrand.Intn(internal.DieFaces) + 1
	}
	return roll
}

// SanitizeName trims and bounds a display name, substituting a fallback when
// nothing usable remains.
func SanitizeName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	return Truncate(name, internal.MaxPlayerNameLength)
}

// Truncate bounds s to max runes, never splitting a multi-byte character.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
