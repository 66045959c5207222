package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// SerializationChecksum is a deterministic checksum of a game. Two games
// fed the same seed, decks and actions hash identically.
type SerializationChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Timestamp string
	Version   int
}

// ComputeChecksum hashes the canonical representation of st.
func ComputeChecksum(st *state.GameState) (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(canonicalState(st))); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// VerifyChecksum reports whether st still hashes to expected.
func VerifyChecksum(st *state.GameState, expected *SerializationChecksum) (bool, error) {
	computed, err := ComputeChecksum(st)
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// canonicalState renders st independently of instance uuids: instances are
// named by definition id and referenced by zone position.
func canonicalState(st *state.GameState) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%s|%d|%d|%t|%s|%d\n",
		st.ID,
		st.Turn,
		st.Phase,
		st.ActivePlayerIndex,
		st.FirstPlayerIndex,
		st.CardPlayedThisTurn,
		st.Setup.Stage,
		st.Winner,
	)
	fmt.Fprintf(&buf, "SETUP:%v|%v|%t\n", st.Setup.Kept, st.Setup.Mulliganed, st.EndOfTurnFinalized)

	for i, p := range st.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%s|%d|%d|%d\n", i, p.ID, p.Name, p.HP, len(p.Deck), len(p.Hand))
		for _, c := range p.Hand {
			fmt.Fprintf(&buf, "  HAND:%s\n", c.Def.ID)
		}
		for slot, c := range p.Field {
			if c == nil {
				fmt.Fprintf(&buf, "  SLOT:%d|-\n", slot)
				continue
			}
			fmt.Fprintf(&buf, "  SLOT:%d|%s\n", slot, canonicalInstance(c))
		}
		// Carrion is a pile; its order carries no meaning.
		carrion := make([]string, len(p.Carrion))
		for j, c := range p.Carrion {
			carrion[j] = c.Def.ID
		}
		slices.Sort(carrion)
		buf.WriteString("  CARRION:")
		buf.WriteString(strings.Join(carrion, ","))
		buf.WriteString("\n")
	}

	if fs := st.FieldSpell; fs != nil {
		fmt.Fprintf(&buf, "FIELD_SPELL:%s|%d\n", positionOf(st, fs.InstanceID), fs.PlayerIndex)
	}
	if w := st.ExtendedConsumption; w != nil {
		fmt.Fprintf(&buf, "CONSUMING:%s|%d|%d\n", positionOf(st, w.PredatorID), w.PlayerIndex, w.Consumed)
	}
	// Queues resolve in order, so they are not sorted.
	buf.WriteString("BEFORE_COMBAT:")
	buf.WriteString(strings.Join(positionsOf(st, st.BeforeCombatQueue), ","))
	buf.WriteString("\nEND_OF_TURN:")
	buf.WriteString(strings.Join(positionsOf(st, st.EndOfTurnQueue), ","))
	buf.WriteString("\n")
	if d := st.Pending; d != nil {
		fmt.Fprintf(&buf, "PENDING:%d|%s|%s|%s\n",
			d.PlayerIndex,
			d.Context.SourceName,
			d.Context.Trigger,
			strings.Join(positionsOf(st, d.Candidates), ","))
	}
	if pa := st.PendingAttack; pa != nil {
		fmt.Fprintf(&buf, "PENDING_ATTACK:%s|%s|%d\n", positionOf(st, pa.AttackerID), positionOf(st, pa.TargetID), pa.PlayerIndex)
	}
	return buf.String()
}

func canonicalInstance(c *card.Instance) string {
	return fmt.Sprintf("%s|%d/%d|%s|f%t:%d|p%t:%d|w%t|b%t|d%t|x%t|a%t|s%d/%d|k%t:%d|h%t|t%d",
		c.Def.ID,
		c.CurrentAtk, c.CurrentHP,
		strings.Join(c.Keywords.Strings(), "+"),
		c.Frozen, c.FrozenDiesTurn,
		c.Paralyzed, c.ParalyzedUntilTurn,
		c.Webbed,
		c.HasBarrier,
		c.DryDropped,
		c.AbilitiesCancelled,
		c.HasAttacked,
		c.CurrentShell, c.ShellLevel,
		c.Stalking, c.StalkBonus,
		c.Hidden,
		c.SummonedTurn,
	)
}

// positionOf names an instance by where it is: P<player>.F<slot> on a
// field, P<player>.H<index> in a hand, P<player>.C<index> in carrion.
func positionOf(st *state.GameState, id string) string {
	if id == "" {
		return "player"
	}
	for pi, p := range st.Players {
		if slot := p.SlotOf(id); slot >= 0 {
			return fmt.Sprintf("P%d.F%d", pi, slot)
		}
		if i := p.HandIndex(id); i >= 0 {
			return fmt.Sprintf("P%d.H%d", pi, i)
		}
		if i := p.CarrionIndex(id); i >= 0 {
			return fmt.Sprintf("P%d.C%d", pi, i)
		}
	}
	return "gone"
}

func positionsOf(st *state.GameState, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = positionOf(st, id)
	}
	return out
}
