package main

import (
	"sort"
)

const (
	fruitKinds = 4
	bellTarget = 5
)

// Per fruit kind, how many copies of each count value the deck holds.
// 4 kinds x (5+3+3+2+1) = 56 cards.
var countCopies = [...]struct{ count, copies int }{
	{1, 5},
	{2, 3},
	{3, 3},
	{4, 2},
	{5, 1},
}

// buildDeck assembles and shuffles the full 56-card deck. With shortDeck
// set it is truncated to five cards per player, a debug shortcut for
// faster games; the full deck is the canonical rule.
func buildDeck(shortDeck bool, playerCount int) []Card {
	var deck []Card
	for fruit := 1; fruit <= fruitKinds; fruit++ {
		for _, cc := range countCopies {
			for i := 0; i < cc.copies; i++ {
				deck = append(deck, Card{Fruit: fruit, Count: cc.count})
			}
		}
	}

	// Fisher-Yates shuffle using crypto/rand
	for i := len(deck) - 1; i > 0; i-- {
		j := randomInt(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}

	if shortDeck && playerCount > 0 && len(deck) > playerCount*5 {
		deck = deck[:playerCount*5]
	}

	return deck
}

// deal starts a card match: shuffled deck, round-robin hands, first seat
// leads. Hand sizes differ by at most one.
func (reg *Registry) deal(room *Room) {
	deck := buildDeck(reg.cfg.shortDeck, len(room.players))

	for i, card := range deck {
		p := room.players[i%len(room.players)]
		p.Deck = append(p.Deck, card)
	}

	room.flipSeq++ // invalidate continuations from any previous match

	logf(reg.cfg, "GAME: Dealt %d cards to %d players in room %s", len(deck), len(room.players), room.code)

	room.broadcast(GameStartMessage{
		Type:        "gameStart",
		RoomID:      room.code,
		Players:     room.snapshot(),
		HostID:      room.hostID,
		FirstTurnID: room.players[0].ID,
	})
}

// bellWindowOpen reports whether any fruit kind's face-up counts sum to
// exactly the bell target. When two kinds hit it at once, any match wins;
// no priority order exists between kinds.
func (room *Room) bellWindowOpen() bool {
	var totals [fruitKinds + 1]int
	for _, p := range room.players {
		if p.OpenCard != nil {
			totals[p.OpenCard.Fruit] += p.OpenCard.Count
		}
	}
	for _, total := range totals {
		if total == bellTarget {
			return true
		}
	}
	return false
}

// handleFlip pops the turn holder's top card face-up. Out-of-turn,
// mid-resolution, and wrong-phase attempts are dropped without a reply;
// they are stale-UI artifacts, not errors.
func (reg *Registry) handleFlip(room *Room, c *Client) {
	if room.phase != PhaseInProgress || room.flipLocked {
		return
	}
	cur := room.currentPlayer()
	if cur == nil || cur.ID != c.playerID {
		return
	}
	if len(cur.Deck) == 0 {
		// unreachable: turn advancement never parks on an empty deck
		return
	}

	card := cur.Deck[len(cur.Deck)-1]
	cur.Deck = cur.Deck[:len(cur.Deck)-1]
	cur.OpenCard = &card
	cur.OpenStack = append(cur.OpenStack, card)

	room.flipLocked = true
	room.flipSeq++
	seq := room.flipSeq
	room.touch()

	// broadcast before resolution so clients can animate the reveal
	room.broadcast(CardFlippedMessage{
		Type:           "cardFlipped",
		PlayerID:       cur.ID,
		Card:           card,
		RemainingCount: len(cur.Deck),
	})

	reg.scheduleTask(reg.cfg.settleDelay, func() {
		if !reg.roomAlive(room) || room.phase != PhaseInProgress || room.flipSeq != seq {
			return
		}
		reg.resolveFlip(room)
	})
}

// resolveFlip runs after the settle window: if a bell window is open the
// turn holder keeps the floor and everyone races for the bell; otherwise
// the turn advances past (and eliminates) seats that can no longer act.
func (reg *Registry) resolveFlip(room *Room) {
	room.flipLocked = false
	if room.bellWindowOpen() {
		return
	}
	room.turnIndex = (room.turnIndex + 1) % len(room.players)
	reg.ensureTurn(room)
}

// ensureTurn validates the current turn holder, sweeping over seats that
// cannot flip. A seat with no deck, no open stack, and no bell window to
// save it is eliminated for good; a seat with face-up cards still in play
// is skipped but spared. Announces the resulting turn holder.
func (reg *Registry) ensureTurn(room *Room) {
	if room.phase != PhaseInProgress || len(room.players) == 0 {
		return
	}

	for range room.players {
		room.turnIndex %= len(room.players)
		p := room.players[room.turnIndex]

		if !p.Eliminated && len(p.Deck) > 0 {
			room.broadcast(TurnChangedMessage{Type: "turnChanged", NextTurnID: p.ID})
			return
		}

		if !p.Eliminated && len(p.OpenStack) == 0 && !room.bellWindowOpen() {
			p.Eliminated = true
			logf(reg.cfg, "GAME: %q eliminated in room %s", p.Nickname, room.code)
			if reg.checkGameOver(room) {
				return
			}
		}

		room.turnIndex++
	}

	// no seat can flip: settle the match on remaining cards
	reg.endGame(room)
}

// handleRingBell resolves a bell attempt. There is no turn restriction:
// racing to ring first is the game. A ring arriving inside the settle
// window fast-forwards the pending flip resolution so outcomes stay
// deterministic.
func (reg *Registry) handleRingBell(room *Room, c *Client) {
	if room.phase != PhaseInProgress {
		return
	}
	ringer := room.playerByID(c.playerID)
	if ringer == nil || ringer.Eliminated {
		return
	}

	if room.flipLocked {
		room.flipSeq++ // cancel the scheduled continuation
		reg.resolveFlip(room)
		if room.phase != PhaseInProgress {
			return
		}
	}

	room.touch()

	if room.bellWindowOpen() {
		reg.collectBell(room, ringer)
		return
	}
	reg.penalizeBell(room, ringer)
}

// collectBell awards every face-up stack on the table to the ringer and
// hands them the next turn.
func (reg *Registry) collectBell(room *Room, winner *Player) {
	var pool []Card
	for _, p := range room.players {
		pool = append(pool, p.OpenStack...)
		p.OpenStack = nil
		p.OpenCard = nil
	}

	// collected cards go to the bottom of the winner's deck
	winner.Deck = append(pool, winner.Deck...)
	room.turnIndex = room.playerIndex(winner.ID)

	// the table is empty now, so zero-card seats lose their last chance
	for _, p := range room.players {
		if !p.Eliminated && len(p.Deck) == 0 && len(p.OpenStack) == 0 {
			p.Eliminated = true
			logf(reg.cfg, "GAME: %q eliminated in room %s", p.Nickname, room.code)
		}
	}

	logf(reg.cfg, "GAME: %q rang the bell and took %d cards in room %s", winner.Nickname, len(pool), room.code)

	room.broadcast(BellResultMessage{
		Type:           "bellResult",
		Success:        true,
		WinnerID:       winner.ID,
		WinnerNickname: winner.Nickname,
		Players:        room.snapshot(),
		Message:        winner.Nickname + " rang the bell and collected the table",
	})

	if reg.checkGameOver(room) {
		return
	}
	reg.ensureTurn(room)
}

// penalizeBell punishes a wrong ring: one card off the bottom of the
// ringer's deck to the top of each other surviving seat, in seating order
// starting just past the ringer, stopping early if the ringer runs dry.
func (reg *Registry) penalizeBell(room *Room, ringer *Player) {
	start := room.playerIndex(ringer.ID)
	for i := 1; i < len(room.players); i++ {
		if len(ringer.Deck) == 0 {
			break
		}
		recipient := room.players[(start+i)%len(room.players)]
		if recipient.Eliminated {
			continue
		}
		card := ringer.Deck[0]
		ringer.Deck = ringer.Deck[1:]
		recipient.Deck = append(recipient.Deck, card)
	}

	if len(ringer.Deck) == 0 && len(ringer.OpenStack) == 0 && !room.bellWindowOpen() {
		ringer.Eliminated = true
		logf(reg.cfg, "GAME: %q eliminated in room %s", ringer.Nickname, room.code)
	}

	logf(reg.cfg, "GAME: %q rang the bell early in room %s", ringer.Nickname, room.code)

	room.broadcast(BellResultMessage{
		Type:      "bellResult",
		Success:   false,
		PenaltyID: ringer.ID,
		Players:   room.snapshot(),
		Message:   ringer.Nickname + " rang the bell with no match",
	})

	if reg.checkGameOver(room) {
		return
	}
	reg.ensureTurn(room)
}

// checkGameOver ends the match once at most one seat still holds cards.
func (reg *Registry) checkGameOver(room *Room) bool {
	survivors := 0
	for _, p := range room.players {
		if len(p.Deck) > 0 || len(p.OpenStack) > 0 {
			survivors++
		}
	}
	if survivors > 1 {
		return false
	}
	reg.endGame(room)
	return true
}

// endGame fires gameEnded exactly once, ranking seats by remaining deck
// size with ties left in seating order.
func (reg *Registry) endGame(room *Room) {
	room.phase = PhaseEnded
	room.flipLocked = false
	room.flipSeq++ // drop any in-flight settle continuation

	ranking := room.snapshot()
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Cards > ranking[j].Cards
	})

	winnerName := ""
	if len(ranking) > 0 {
		winnerName = ranking[0].Nickname
	}

	logf(reg.cfg, "GAME: Room %s ended, %q wins", room.code, winnerName)

	room.broadcast(GameEndedMessage{
		Type:       "gameEnded",
		Ranking:    ranking,
		WinnerName: winnerName,
		HostID:     room.hostID,
	})
}
