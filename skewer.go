package main

import (
	"sort"
)

const (
	recipeCount     = 3
	ingredientKinds = 5
)

var recipeAngles = [...]int{0, 90, 180, 270}

// newRecipes rolls a fresh recipe set: each recipe is one to four
// ingredients with a kind and a rotation.
func newRecipes() []Skewer {
	recipes := make([]Skewer, 0, recipeCount)
	for i := 0; i < recipeCount; i++ {
		recipe := make(Skewer, 0, 4)
		ingredients := randomInt(4) + 1
		for j := 0; j < ingredients; j++ {
			recipe = append(recipe, Ingredient{
				ID:    randomInt(ingredientKinds) + 1,
				Angle: recipeAngles[randomInt(len(recipeAngles))],
			})
		}
		recipes = append(recipes, recipe)
	}
	return recipes
}

// startRecipeRound begins a skewer round with freshly rolled recipes.
func (reg *Registry) startRecipeRound(room *Room) {
	room.roundSeq++
	room.recipes = newRecipes()

	logf(reg.cfg, "GAME: New recipe round in room %s (%d players)", room.code, len(room.players))

	room.broadcast(GameStartMessage{
		Type:    "gameStart",
		RoomID:  room.code,
		Players: room.snapshot(),
		HostID:  room.hostID,
		Recipes: room.recipes,
	})
}

// handleSyncSkewer mirrors a player's in-progress skewer to the room so
// opponents can watch each other cook.
func (reg *Registry) handleSyncSkewer(room *Room, c *Client, msg ClientMessage) {
	p := room.playerByID(c.playerID)
	if p == nil {
		return
	}
	p.Current = msg.Skewer
	room.touch()
	room.broadcast(ScoresMessage{Type: "updateScores", Players: room.snapshot()})
}

// handleUpdateProgress records a completed skewer and the player's count.
func (reg *Registry) handleUpdateProgress(room *Room, c *Client, msg ClientMessage) {
	p := room.playerByID(c.playerID)
	if p == nil {
		return
	}
	p.Completed = msg.Completed
	p.Progress = msg.Count
	p.Current = nil
	room.touch()
	room.broadcast(ScoresMessage{Type: "updateScores", Players: room.snapshot()})
}

// handleSubmit validates a full submission against the round's recipes.
// The verdict goes to the submitter alone; scores go to everyone.
func (reg *Registry) handleSubmit(room *Room, c *Client, msg ClientMessage) {
	if room.phase != PhaseInProgress {
		return
	}
	p := room.playerByID(c.playerID)
	if p == nil || p.Finished {
		return
	}
	room.touch()

	if !matchesRecipes(room.recipes, msg.Submission) {
		room.sendTo(p.ID, ResultMessage{Type: "result", Success: false})
		return
	}

	room.submitCount++
	if room.submitCount == 1 {
		p.Score += 100
	} else {
		p.Score += 80
	}
	p.Finished = true
	p.Progress = len(room.recipes)
	p.Completed = append([]Skewer(nil), room.recipes...)
	p.Current = nil

	logf(reg.cfg, "GAME: %q finished the recipes in room %s (#%d)", p.Nickname, room.code, room.submitCount)

	room.sendTo(p.ID, ResultMessage{Type: "result", Success: true})
	room.broadcast(ScoresMessage{Type: "updateScores", Players: room.snapshot()})

	reg.maybeEndRecipeRound(room)
}

// maybeEndRecipeRound closes the round once all but one player (or the
// sole guest, in a two-seat room) have finished, after a short pause so
// the last finisher's animation can land.
func (reg *Registry) maybeEndRecipeRound(room *Room) {
	if room.mode != ModeSkewer || room.phase != PhaseInProgress {
		return
	}
	target := len(room.players) - 1
	if target < 1 {
		target = 1
	}
	if room.submitCount < target {
		return
	}

	seq := room.roundSeq
	reg.scheduleTask(reg.cfg.roundEndDelay, func() {
		if !reg.roomAlive(room) || room.phase != PhaseInProgress || room.roundSeq != seq {
			return
		}
		reg.endRecipeRound(room)
	})
}

// endRecipeRound fires recipeEnded with score-ordered standings. Seating
// order is left untouched; only the broadcast is sorted.
func (reg *Registry) endRecipeRound(room *Room) {
	room.phase = PhaseEnded
	room.roundSeq++

	standings := room.snapshot()
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})

	logf(reg.cfg, "GAME: Recipe round ended in room %s", room.code)

	room.broadcast(RecipeEndedMessage{
		Type:    "recipeEnded",
		Players: standings,
		HostID:  room.hostID,
	})
}

// matchesRecipes compares a submission to the recipe set: same number of
// skewers, same ingredients in order, angles compared modulo a full turn.
func matchesRecipes(recipes, submission []Skewer) bool {
	if len(submission) != len(recipes) {
		return false
	}
	for i, recipe := range recipes {
		if len(submission[i]) != len(recipe) {
			return false
		}
		for j, want := range recipe {
			got := submission[i][j]
			if got.ID != want.ID || normalizeAngle(got.Angle) != normalizeAngle(want.Angle) {
				return false
			}
		}
	}
	return true
}

func normalizeAngle(angle int) int {
	return ((angle % 360) + 360) % 360
}
