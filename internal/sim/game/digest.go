package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"whisperwire.ai/internal/sim/model"
)

// Digest is a sha256 over a canonical walk of the live state. Two sessions that went
// through the same commands from the same seed produce the same digest.
func (m *Manager) Digest() string { return StateDigest(m.st) }

func StateDigest(st *model.State) string {
	h := sha256.New()
	var tmp [8]byte

	writeStr(h, st.Seed)
	writeStr(h, string(st.Phase))
	writeU64(h, &tmp, uint64(st.Round))
	writeF64(h, &tmp, st.Resources.Money)
	writeF64(h, &tmp, st.Resources.Attention)
	writeF64(h, &tmp, st.Resources.Infrastructure)
	writeF64(h, &tmp, st.DetectionRisk)
	writeU64(h, &tmp, uint64(st.RNG))
	writeStr(h, string(st.DefeatReason))
	writeBool(h, st.ForcedDefeat)

	if st.Network != nil {
		for _, a := range st.Network.Actors {
			writeStr(h, a.ID)
			writeF64(h, &tmp, a.Trust)
			writeF64(h, &tmp, a.BaseTrust)
			writeF64(h, &tmp, a.Resilience)
			writeF64(h, &tmp, a.EmotionalState)
			writeF64(h, &tmp, a.RecoveryRate)
			writeF64(h, &tmp, a.Position.X)
			writeF64(h, &tmp, a.Position.Y)
			writeIntMap(h, &tmp, a.Cooldowns)
		}
		for _, c := range st.Network.Connections {
			writeStr(h, c.Source)
			writeStr(h, c.Target)
			writeF64(h, &tmp, c.Strength)
			writeStr(h, c.Type)
		}
	}

	for _, p := range st.Combos {
		writeStr(h, p.ComboID)
		writeU64(h, &tmp, uint64(p.Step))
		writeU64(h, &tmp, uint64(p.StartedRound))
		writeU64(h, &tmp, uint64(p.ExpiresRound))
	}
	writeU64(h, &tmp, uint64(st.ChainSeq))
	for _, c := range st.Chains {
		writeStr(h, c.ID)
		writeStr(h, c.EventID)
		writeStr(h, string(c.Status))
		writeU64(h, &tmp, uint64(c.FireRound))
		writeU64(h, &tmp, uint64(c.Deadline))
		writeStr(h, c.Origin)
	}
	writeIntMap(h, &tmp, st.Fired)
	writeIntMap(h, &tmp, st.Holds)

	keys := make([]string, 0, len(st.Usage))
	for k := range st.Usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		u := st.Usage[k]
		writeStr(h, k)
		writeU64(h, &tmp, uint64(u.Count))
		writeU64(h, &tmp, uint64(u.LastRound))
	}

	s := st.Stats
	for _, v := range []int{s.AbilitiesUsed, s.CombosCompleted, s.EventsFired, s.EventsResolved, s.ChoicesMade, s.ChainsExpired} {
		writeU64(h, &tmp, uint64(v))
	}
	writeIntMap(h, &tmp, s.AbilityUses)
	writeU64(h, &tmp, uint64(len(st.History)))

	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeStr(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func writeBool(h hash.Hash, b bool) {
	if b {
		h.Write([]byte{1})
		return
	}
	h.Write([]byte{0})
}

func writeIntMap(h hash.Hash, tmp *[8]byte, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		writeStr(h, k)
		writeU64(h, tmp, uint64(m[k]))
	}
}
