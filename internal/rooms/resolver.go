package rooms

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aura-voice/backend/internal/models"
)

// FallbackRoomName is used when a resolved name sanitizes to nothing.
const FallbackRoomName = "Voice Room"

// maxNameLength is the platform's channel name limit.
const maxNameLength = 100

// RoomSpec is the effective configuration for one room-creation request:
// guild defaults merged with the requester's stored preference, gated by the
// guild's per-feature toggles and clamped to its hard caps.
type RoomSpec struct {
	Name      string
	Capacity  int
	Bitrate   int // kbps
	Locked    bool
	KeepAlive bool
	Allowed   []string
	Denied    []string
}

// Resolve merges guild policy and user preference into an effective room spec.
// Pure: no side effects, deterministic for identical inputs. pref may be nil.
func Resolve(policy *models.GuildPolicy, pref *models.UserPreference, requesterID, username string) RoomSpec {
	spec := RoomSpec{
		Name:     policy.NameTemplate,
		Capacity: policy.DefaultCapacity,
		Bitrate:  policy.DefaultBitrate,
	}

	if pref != nil {
		if policy.AllowRename && pref.NameTemplate != nil {
			spec.Name = *pref.NameTemplate
		}
		if policy.AllowCapacity && pref.Capacity != nil {
			spec.Capacity = *pref.Capacity
		}
		if policy.AllowBitrate && pref.Bitrate != nil {
			spec.Bitrate = *pref.Bitrate
		}
		if policy.AllowLock && pref.Locked != nil {
			spec.Locked = *pref.Locked
		}
		if policy.AllowManage && pref.KeepAlive != nil {
			spec.KeepAlive = *pref.KeepAlive
		}
		if policy.AllowManage {
			spec.Allowed = dedupe(pref.Allowed, "")
			spec.Denied = dedupe(pref.Denied, requesterID) // owner is never denied
		}
	}

	spec.Name = SanitizeName(strings.ReplaceAll(spec.Name, "{username}", username))
	if spec.Capacity == 0 && policy.MaxCapacity > 0 {
		// 0 means unlimited; a guild with a hard cap never gets unlimited rooms.
		spec.Capacity = policy.MaxCapacity
	}
	spec.Capacity = clamp(spec.Capacity, 0, policy.MaxCapacity)
	spec.Bitrate = clamp(spec.Bitrate, 8, policy.MaxBitrate)
	return spec
}

// SanitizeName reduces a name to the platform's legal character set and
// length, falling back to FallbackRoomName when nothing survives.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '\'':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return FallbackRoomName
	}
	if utf8.RuneCountInString(out) > maxNameLength {
		// Truncate on a rune boundary; a byte slice could split a
		// multi-byte letter and ship invalid UTF-8 to the platform.
		out = strings.TrimSpace(string([]rune(out)[:maxNameLength]))
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func dedupe(ids []string, skip string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
