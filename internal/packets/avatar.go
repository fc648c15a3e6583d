package packets

import (
	"fmt"

	"github.com/dcrodman/bastion/internal/core/bytes"
)

// ClanRole is the rank of an avatar within its clan.
type ClanRole int32

const (
	ClanRoleMember   ClanRole = 1
	ClanRoleLeader   ClanRole = 2
	ClanRoleElder    ClanRole = 3
	ClanRoleCoLeader ClanRole = 4
)

// clanWarParticipant is the war state that is followed by a war id.
const clanWarParticipant uint8 = 1

// Clan is the optional clan membership block of an Avatar.
type Clan struct {
	ID    int64
	Name  bytes.NullString
	Badge int32
	Role  ClanRole
	Level int32
	// WarState is 1 when the clan is in a war, in which case WarID follows it
	// on the wire. Any other value is written as is with no WarID.
	WarState uint8
	WarID    int64
}

// Avatar is the full progress snapshot of an account as embedded in
// OwnHomeData. Fields named UnknownN have no known meaning and are echoed.
type Avatar struct {
	Unknown1 int32
	UserID   int64
	HomeID   int64
	// Clan is nil for an avatar that is not in a clan.
	Clan *Clan

	LegendaryTrophies  int32
	BestSeasonEnabled  int32
	BestSeasonMonth    int32
	BestSeasonYear     int32
	BestSeasonPosition int32
	BestSeasonTrophies int32
	LastSeasonEnabled  int32
	LastSeasonMonth    int32
	LastSeasonYear     int32
	LastSeasonPosition int32
	LastSeasonTrophies int32

	LeagueLevel                 int32
	AllianceCastleLevel         int32
	AllianceCastleTotalCapacity int32
	AllianceCastleUsedCapacity  int32
	Unknown13                   int32
	Unknown14                   int32
	TownHallLevel               int32
	Name                        bytes.NullString
	Unknown15                   int32

	Level      int32
	Experience int32
	Gems       int32
	FreeGems   int32
	Unknown16  int32
	Unknown17  int32

	Trophies     int32
	AttacksWon   int32
	AttacksLost  int32
	DefensesWon  int32
	DefensesLost int32

	Unknown18 int32
	Unknown19 int32
	Unknown20 int32
	Unknown29 int32
	Unknown21 uint8
	Unknown22 int64
	IsNamed   bool
	Unknown23 int32
	Unknown24 int32
	Unknown25 int32
	Unknown26 int32
	Unknown27 int32
	Unknown28 int32
	Unknown30 uint8

	ResourcesCapacity   []ResourceSlot
	ResourcesAmount     []ResourceSlot
	Units               []UnitSlot
	Spells              []SpellSlot
	UnitUpgrades        []UnitUpgradeSlot
	SpellUpgrades       []SpellUpgradeSlot
	HeroUpgrades        []HeroUpgradeSlot
	HeroHealths         []HeroHealthSlot
	HeroStates          []HeroStateSlot
	AllianceUnits       []AllianceUnitSlot
	TutorialProgress    []TutorialProgressSlot
	Achievements        []AchievementSlot
	AchievementProgress []AchievementProgressSlot
	NPCStars            []NPCStarSlot
	NPCGold             []NPCLootSlot
	NPCElixir           []NPCLootSlot

	UnknownSlot1 []UnknownSlot
	UnknownSlot2 []UnknownSlot
	UnknownSlot3 []UnknownSlot
	UnknownSlot4 []UnknownSlot

	Unknown31    int32
	Unknown32    int32
	Unknown33    int32
	UnknownSlot5 []UnknownSlot
}

// NewAvatar returns an Avatar for the account id with the values the client
// expects in fields whose meaning is unknown.
func NewAvatar(id int64) *Avatar {
	return &Avatar{
		UserID:    id,
		HomeID:    id,
		Unknown15: -1,
		Unknown16: 1200,
		Unknown17: 60,
		Unknown21: 1,
		Unknown22: 946720861000,
		Unknown26: 1,
		Unknown27: 1,
	}
}

func (a *Avatar) decode(r *bytes.Reader) {
	a.Unknown1 = r.Int32()
	a.UserID = r.Int64()
	a.HomeID = r.Int64()

	a.Clan = nil
	if r.Bool() {
		c := &Clan{}
		c.ID = r.Int64()
		c.Name = r.String()
		c.Badge = r.Int32()
		c.Role = ClanRole(r.Int32())
		c.Level = r.Int32()
		c.WarState = r.Uint8()
		if c.WarState == clanWarParticipant {
			c.WarID = r.Int64()
		}
		a.Clan = c
	}

	a.LegendaryTrophies = r.Int32()
	a.BestSeasonEnabled = r.Int32()
	a.BestSeasonMonth = r.Int32()
	a.BestSeasonYear = r.Int32()
	a.BestSeasonPosition = r.Int32()
	a.BestSeasonTrophies = r.Int32()
	a.LastSeasonEnabled = r.Int32()
	a.LastSeasonMonth = r.Int32()
	a.LastSeasonYear = r.Int32()
	a.LastSeasonPosition = r.Int32()
	a.LastSeasonTrophies = r.Int32()

	a.LeagueLevel = r.Int32()
	a.AllianceCastleLevel = r.Int32()
	a.AllianceCastleTotalCapacity = r.Int32()
	a.AllianceCastleUsedCapacity = r.Int32()
	a.Unknown13 = r.Int32()
	a.Unknown14 = r.Int32()
	a.TownHallLevel = r.Int32()
	a.Name = r.String()
	a.Unknown15 = r.Int32()

	a.Level = r.Int32()
	a.Experience = r.Int32()
	a.Gems = r.Int32()
	a.FreeGems = r.Int32()
	a.Unknown16 = r.Int32()
	a.Unknown17 = r.Int32()

	a.Trophies = r.Int32()
	a.AttacksWon = r.Int32()
	a.AttacksLost = r.Int32()
	a.DefensesWon = r.Int32()
	a.DefensesLost = r.Int32()

	a.Unknown18 = r.Int32()
	a.Unknown19 = r.Int32()
	a.Unknown20 = r.Int32()
	a.Unknown29 = r.Int32()
	a.Unknown21 = r.Uint8()
	a.Unknown22 = r.Int64()
	a.IsNamed = r.Bool()
	a.Unknown23 = r.Int32()
	a.Unknown24 = r.Int32()
	a.Unknown25 = r.Int32()
	a.Unknown26 = r.Int32()
	a.Unknown27 = r.Int32()
	a.Unknown28 = r.Int32()
	a.Unknown30 = r.Uint8()

	a.ResourcesCapacity = readDataSlots[ResourceSlot](r, KindResource)
	a.ResourcesAmount = readDataSlots[ResourceSlot](r, KindResource)
	a.Units = readDataSlots[UnitSlot](r, KindUnit)
	a.Spells = readDataSlots[SpellSlot](r, KindSpell)
	a.UnitUpgrades = readDataSlots[UnitUpgradeSlot](r, KindUnit)
	a.SpellUpgrades = readDataSlots[SpellUpgradeSlot](r, KindSpell)
	a.HeroUpgrades = readDataSlots[HeroUpgradeSlot](r, KindHero)
	a.HeroHealths = readDataSlots[HeroHealthSlot](r, KindHero)
	a.HeroStates = readDataSlots[HeroStateSlot](r, KindHero)
	a.AllianceUnits = readDataSlots[AllianceUnitSlot](r, anyKind)
	a.TutorialProgress = readDataSlots[TutorialProgressSlot](r, KindMission)
	a.Achievements = readDataSlots[AchievementSlot](r, KindAchievement)
	a.AchievementProgress = readDataSlots[AchievementProgressSlot](r, KindAchievement)
	a.NPCStars = readDataSlots[NPCStarSlot](r, KindNPC)
	a.NPCGold = readDataSlots[NPCLootSlot](r, KindNPC)
	a.NPCElixir = readDataSlots[NPCLootSlot](r, KindNPC)

	a.UnknownSlot1 = readDataSlots[UnknownSlot](r, anyKind)
	a.UnknownSlot2 = readDataSlots[UnknownSlot](r, anyKind)
	a.UnknownSlot3 = readDataSlots[UnknownSlot](r, anyKind)
	a.UnknownSlot4 = readDataSlots[UnknownSlot](r, anyKind)

	a.Unknown31 = r.Int32()
	a.Unknown32 = r.Int32()
	a.Unknown33 = r.Int32()
	a.UnknownSlot5 = readDataSlots[UnknownSlot](r, anyKind)
}

func (a *Avatar) encode(w *bytes.Writer) error {
	if c := a.Clan; c != nil && c.WarState != clanWarParticipant && c.WarID != 0 {
		return fmt.Errorf("clan war id %d set with war state %d: %w", c.WarID, c.WarState, ErrEncodeInvariant)
	}

	w.Int32(a.Unknown1)
	w.Int64(a.UserID)
	w.Int64(a.HomeID)

	w.Bool(a.Clan != nil)
	if c := a.Clan; c != nil {
		w.Int64(c.ID)
		w.String(c.Name)
		w.Int32(c.Badge)
		w.Int32(int32(c.Role))
		w.Int32(c.Level)
		w.Uint8(c.WarState)
		if c.WarState == clanWarParticipant {
			w.Int64(c.WarID)
		}
	}

	w.Int32(a.LegendaryTrophies)
	w.Int32(a.BestSeasonEnabled)
	w.Int32(a.BestSeasonMonth)
	w.Int32(a.BestSeasonYear)
	w.Int32(a.BestSeasonPosition)
	w.Int32(a.BestSeasonTrophies)
	w.Int32(a.LastSeasonEnabled)
	w.Int32(a.LastSeasonMonth)
	w.Int32(a.LastSeasonYear)
	w.Int32(a.LastSeasonPosition)
	w.Int32(a.LastSeasonTrophies)

	w.Int32(a.LeagueLevel)
	w.Int32(a.AllianceCastleLevel)
	w.Int32(a.AllianceCastleTotalCapacity)
	w.Int32(a.AllianceCastleUsedCapacity)
	w.Int32(a.Unknown13)
	w.Int32(a.Unknown14)
	w.Int32(a.TownHallLevel)
	w.String(a.Name)
	w.Int32(a.Unknown15)

	w.Int32(a.Level)
	w.Int32(a.Experience)
	w.Int32(a.Gems)
	w.Int32(a.FreeGems)
	w.Int32(a.Unknown16)
	w.Int32(a.Unknown17)

	w.Int32(a.Trophies)
	w.Int32(a.AttacksWon)
	w.Int32(a.AttacksLost)
	w.Int32(a.DefensesWon)
	w.Int32(a.DefensesLost)

	w.Int32(a.Unknown18)
	w.Int32(a.Unknown19)
	w.Int32(a.Unknown20)
	w.Int32(a.Unknown29)
	w.Uint8(a.Unknown21)
	w.Int64(a.Unknown22)
	w.Bool(a.IsNamed)
	w.Int32(a.Unknown23)
	w.Int32(a.Unknown24)
	w.Int32(a.Unknown25)
	w.Int32(a.Unknown26)
	w.Int32(a.Unknown27)
	w.Int32(a.Unknown28)
	w.Uint8(a.Unknown30)

	writeDataSlots(w, a.ResourcesCapacity)
	writeDataSlots(w, a.ResourcesAmount)
	writeDataSlots(w, a.Units)
	writeDataSlots(w, a.Spells)
	writeDataSlots(w, a.UnitUpgrades)
	writeDataSlots(w, a.SpellUpgrades)
	writeDataSlots(w, a.HeroUpgrades)
	writeDataSlots(w, a.HeroHealths)
	writeDataSlots(w, a.HeroStates)
	writeDataSlots(w, a.AllianceUnits)
	writeDataSlots(w, a.TutorialProgress)
	writeDataSlots(w, a.Achievements)
	writeDataSlots(w, a.AchievementProgress)
	writeDataSlots(w, a.NPCStars)
	writeDataSlots(w, a.NPCGold)
	writeDataSlots(w, a.NPCElixir)

	writeDataSlots(w, a.UnknownSlot1)
	writeDataSlots(w, a.UnknownSlot2)
	writeDataSlots(w, a.UnknownSlot3)
	writeDataSlots(w, a.UnknownSlot4)

	w.Int32(a.Unknown31)
	w.Int32(a.Unknown32)
	w.Int32(a.Unknown33)
	writeDataSlots(w, a.UnknownSlot5)
	return nil
}
