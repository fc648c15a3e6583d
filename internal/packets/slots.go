package packets

import (
	"errors"
	"fmt"

	"github.com/dcrodman/bastion/internal/core/bytes"
)

// ErrInvalidDataID is returned when a slot references game data of the
// wrong kind, e.g. a spell id in the unit collection.
var ErrInvalidDataID = errors.New("invalid data id")

// DataKind is the table a game data id points into. Ids are encoded as
// kind*1000000 + index.
type DataKind int32

const dataKindBase = 1000000

// anyKind disables the kind check for collections whose content is unknown.
const anyKind DataKind = 0

const (
	KindResource    DataKind = 3
	KindUnit        DataKind = 4
	KindNPC         DataKind = 17
	KindMission     DataKind = 21
	KindAchievement DataKind = 23
	KindSpell       DataKind = 26
	KindHero        DataKind = 28
)

func (k DataKind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindUnit:
		return "unit"
	case KindNPC:
		return "npc"
	case KindMission:
		return "mission"
	case KindAchievement:
		return "achievement"
	case KindSpell:
		return "spell"
	case KindHero:
		return "hero"
	default:
		return fmt.Sprintf("DataKind(%d)", int32(k))
	}
}

// DataID returns the global id of the index-th entry of kind.
func DataID(kind DataKind, index int32) int32 {
	return int32(kind)*dataKindBase + index
}

// KindOf returns the kind encoded in a global data id.
func KindOf(id int32) DataKind {
	return DataKind(id / dataKindBase)
}

// Typed slot collections of the avatar. Each shares the layout of bytes.Slot
// and differs only in what its ID refers to and what Value counts.
type (
	ResourceSlot            bytes.Slot
	UnitSlot                bytes.Slot
	SpellSlot               bytes.Slot
	UnitUpgradeSlot         bytes.Slot
	SpellUpgradeSlot        bytes.Slot
	HeroUpgradeSlot         bytes.Slot
	HeroHealthSlot          bytes.Slot
	HeroStateSlot           bytes.Slot
	AllianceUnitSlot        bytes.Slot
	TutorialProgressSlot    bytes.Slot
	AchievementSlot         bytes.Slot
	AchievementProgressSlot bytes.Slot
	NPCStarSlot             bytes.Slot
	NPCLootSlot             bytes.Slot
	UnknownSlot             bytes.Slot
)

type slotLike interface {
	~struct {
		ID    int32
		Value int32
	}
}

// readDataSlots decodes a collection whose ids must all belong to kind.
func readDataSlots[T slotLike](r *bytes.Reader, kind DataKind) []T {
	return bytes.DecodeSlots(r, func(s bytes.Slot) (T, error) {
		if kind != anyKind && KindOf(s.ID) != kind {
			var zero T
			return zero, fmt.Errorf("%w: %d is not a %v id", ErrInvalidDataID, s.ID, kind)
		}
		return T(s), nil
	})
}

func writeDataSlots[T slotLike](w *bytes.Writer, slots []T) {
	bytes.EncodeSlots(w, slots, func(s T) bytes.Slot { return bytes.Slot(s) })
}
