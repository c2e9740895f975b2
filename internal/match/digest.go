package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/replicated"
)

// stateDigest hashes the full match state in a canonical order. Two matches
// fed the same joins, leaves and actions tick for tick produce the same
// digest stream; the tick log records it for replay verification.
func (m *Match) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	st := m.state.Get()
	h.Write([]byte(st.Phase))
	h.Write([]byte(st.Result))
	digestWriteU64(h, &tmp, m.windowSeq)
	digestWriteU64(h, &tmp, m.lobbyReturnTick)
	h.Write([]byte{boolByte(m.fielded[protocol.RoleSurvivor]), boolByte(m.fielded[protocol.RoleHunter])})
	digestWriteU64(h, &tmp, uint64(m.survivorDeaths.Get()))
	digestWriteU64(h, &tmp, uint64(m.hunterDeaths.Get()))

	for _, id := range m.joinOrder {
		p := m.participants[id]
		h.Write([]byte(p.ID))
		h.Write([]byte(p.Name))
		h.Write([]byte(p.Role))
		h.Write([]byte(p.State))
		digestWriteU64(h, &tmp, uint64(p.Character))
		h.Write([]byte{boolByte(p.Host), boolByte(p.Alive.Get())})
		digestWriteU64(h, &tmp, uint64(p.Health.Get()))
		digestWriteU64(h, &tmp, uint64(p.Stamina.Get()))
		pos := p.Pos.Get()
		digestWriteU64(h, &tmp, math.Float64bits(pos.X))
		digestWriteU64(h, &tmp, math.Float64bits(pos.Z))
		digestWriteU64(h, &tmp, p.attackReadyTick)
		if s := p.strike; s != nil {
			digestWriteU64(h, &tmp, s.windowID)
			digestWriteU64(h, &tmp, s.untilTick)
			hit := make([]string, 0, len(s.hit))
			for tid := range s.hit {
				hit = append(hit, tid)
			}
			sort.Strings(hit)
			for _, tid := range hit {
				h.Write([]byte(tid))
			}
		}
		for _, slot := range p.Slots.Snapshot() {
			h.Write([]byte(slot.ItemID))
			h.Write([]byte{boolByte(slot.Occupied)})
		}
	}

	for _, it := range m.items {
		h.Write([]byte(it.ID))
		h.Write([]byte(it.Kind))
		h.Write([]byte(it.HeldBy))
		digestWriteU64(h, &tmp, math.Float64bits(it.X))
		digestWriteU64(h, &tmp, math.Float64bits(it.Z))
	}

	for _, board := range []*replicated.List[TaskRecord]{m.survivorBoard, m.hunterBoard} {
		for i := 0; i < board.Len(); i++ {
			r := board.Get(i)
			h.Write([]byte(r.Description))
			digestWriteU64(h, &tmp, uint64(r.Current))
			digestWriteU64(h, &tmp, uint64(r.Required))
			h.Write([]byte{boolByte(r.Completed)})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h interface{ Write([]byte) (int, error) }, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
