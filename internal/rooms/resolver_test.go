package rooms

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/aura-voice/backend/internal/models"
)

func intp(v int) *int       { return &v }
func boolp(v bool) *bool    { return &v }
func strp(v string) *string { return &v }

func TestResolveDefaults(t *testing.T) {
	policy := openPolicy()
	spec := Resolve(policy, nil, "u1", "alice")

	require.Equal(t, "alice's Room", spec.Name)
	// Capacity 0 means unlimited; a guild with a hard cap gets the cap instead.
	require.Equal(t, 10, spec.Capacity)
	require.Equal(t, 64, spec.Bitrate)
	require.False(t, spec.Locked)
}

func TestResolveClampsToGuildCaps(t *testing.T) {
	policy := openPolicy()
	pref := &models.UserPreference{
		Capacity: intp(15),
		Bitrate:  intp(512),
	}
	spec := Resolve(policy, pref, "u1", "alice")

	require.Equal(t, 10, spec.Capacity, "capacity above the guild cap is clamped, not rejected")
	require.Equal(t, 128, spec.Bitrate)
}

func TestResolveTogglesGatePreferences(t *testing.T) {
	policy := openPolicy()
	policy.AllowRename = false
	policy.AllowCapacity = false
	policy.AllowLock = false
	pref := &models.UserPreference{
		NameTemplate: strp("Secret Lair"),
		Capacity:     intp(5),
		Locked:       boolp(true),
	}
	spec := Resolve(policy, pref, "u1", "alice")

	require.Equal(t, "alice's Room", spec.Name)
	require.Equal(t, 10, spec.Capacity)
	require.False(t, spec.Locked)
}

func TestResolveAppliesPreferenceWhenAllowed(t *testing.T) {
	policy := openPolicy()
	pref := &models.UserPreference{
		NameTemplate: strp("{username} HQ"),
		Capacity:     intp(5),
		Bitrate:      intp(96),
		Locked:       boolp(true),
		KeepAlive:    boolp(true),
		Allowed:      []string{"u2", "u2", "u3"},
		Denied:       []string{"u1", "u4"},
	}
	spec := Resolve(policy, pref, "u1", "alice")

	require.Equal(t, "alice HQ", spec.Name)
	require.Equal(t, 5, spec.Capacity)
	require.Equal(t, 96, spec.Bitrate)
	require.True(t, spec.Locked)
	require.True(t, spec.KeepAlive)
	require.Equal(t, []string{"u2", "u3"}, spec.Allowed)
	require.Equal(t, []string{"u4"}, spec.Denied, "the requester never lands in their own deny set")
}

func TestResolveDeterministic(t *testing.T) {
	policy := openPolicy()
	pref := &models.UserPreference{Capacity: intp(4), Locked: boolp(true)}

	first := Resolve(policy, pref, "u1", "alice")
	second := Resolve(policy, pref, "u1", "alice")
	require.Equal(t, first, second)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "alice's Room 2", SanitizeName("alice's Room #2!"))
	require.Equal(t, FallbackRoomName, SanitizeName("@#$%^&*"))
	require.Equal(t, FallbackRoomName, SanitizeName("   "))

	long := make([]byte, 0, 150)
	for i := 0; i < 150; i++ {
		long = append(long, 'a')
	}
	require.Len(t, SanitizeName(string(long)), 100)
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	wide := strings.Repeat("世", 150)
	out := SanitizeName(wide)
	require.True(t, utf8.ValidString(out), "truncation must not split a multi-byte letter")
	require.Equal(t, 100, utf8.RuneCountInString(out))

	mixed := SanitizeName("héllo " + strings.Repeat("ü", 120))
	require.True(t, utf8.ValidString(mixed))
	require.LessOrEqual(t, utf8.RuneCountInString(mixed), 100)
}
