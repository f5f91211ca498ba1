package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// bye marks an empty bracket slot.
const bye = ""

// runSingleElimination pads the bracket to a power of two with byes. The
// first seeds are paired with byes so no round has two empty slots meeting.
func (e *Engine) runSingleElimination(ctx context.Context) (string, error) {
	names := e.Participants()
	size := nextPowerOfTwo(len(names))
	byes := size - len(names)

	slots := make([]string, 0, size)
	for i, name := range names {
		slots = append(slots, name)
		if i < byes {
			slots = append(slots, bye)
		}
	}

	for round := 1; len(slots) > 1; round++ {
		if err := e.observer.RoundStarted(round, fmt.Sprintf("Round %d - %d players", round, len(slots))); err != nil {
			return "", fmt.Errorf("observer: %w", err)
		}
		next := make([]string, 0, len(slots)/2)
		for i := 0; i < len(slots); i += 2 {
			a, b := slots[i], slots[i+1]
			if a == bye || b == bye {
				adv := a
				if a == bye {
					adv = b
				}
				slog.Info("advances on bye", "player", adv, "round", round)
				next = append(next, adv)
				continue
			}
			m, err := e.playMatch(ctx, a, b, fmt.Sprintf("R%dM%d", round, i/2+1), round, true)
			if err != nil {
				return "", err
			}
			next = append(next, m.Winner)
		}
		slots = next
	}
	return slots[0], nil
}

// runDoubleElimination keeps a winners and a losers bracket. A player is
// out after two match losses; the last survivors meet in a grand final.
func (e *Engine) runDoubleElimination(ctx context.Context) (string, error) {
	winners := e.Participants()
	var losers []string

	round := 1
	for ; len(winners) > 1 || len(losers) > 1; round++ {
		if err := e.observer.RoundStarted(round, fmt.Sprintf("Round %d - %d winners, %d losers", round, len(winners), len(losers))); err != nil {
			return "", fmt.Errorf("observer: %w", err)
		}

		var dropped []string
		if len(winners) > 1 {
			next, out, err := e.eliminationRound(ctx, winners, fmt.Sprintf("W%d", round), round)
			if err != nil {
				return "", err
			}
			winners, dropped = next, out
		}
		if len(losers) > 1 {
			next, _, err := e.eliminationRound(ctx, losers, fmt.Sprintf("L%d", round), round)
			if err != nil {
				return "", err
			}
			losers = next
		}
		losers = append(losers, dropped...)
	}

	if len(losers) == 0 {
		return winners[0], nil
	}
	if err := e.observer.RoundStarted(round, "Grand final"); err != nil {
		return "", fmt.Errorf("observer: %w", err)
	}
	m, err := e.playMatch(ctx, winners[0], losers[0], "GFM1", round, true)
	if err != nil {
		return "", err
	}
	return m.Winner, nil
}

// eliminationRound pairs neighbours; an odd player out advances. It returns
// the advancing players and the match losers.
func (e *Engine) eliminationRound(ctx context.Context, field []string, prefix string, round int) ([]string, []string, error) {
	var advance, out []string
	for i := 0; i+1 < len(field); i += 2 {
		m, err := e.playMatch(ctx, field[i], field[i+1], fmt.Sprintf("%sM%d", prefix, i/2+1), round, true)
		if err != nil {
			return nil, nil, err
		}
		advance = append(advance, m.Winner)
		if m.Winner == field[i] {
			out = append(out, field[i+1])
		} else {
			out = append(out, field[i])
		}
	}
	if len(field)%2 == 1 {
		advance = append(advance, field[len(field)-1])
	}
	return advance, out, nil
}

// runRoundRobin schedules every pair exactly once with the circle method,
// giving n-1 rounds for even n and n rounds for odd n.
func (e *Engine) runRoundRobin(ctx context.Context) (string, error) {
	ring := e.Participants()
	if len(ring)%2 == 1 {
		ring = append(ring, bye)
	}
	n := len(ring)

	matchNum := 1
	for round := 1; round < n; round++ {
		if err := e.observer.RoundStarted(round, fmt.Sprintf("Round robin round %d", round)); err != nil {
			return "", fmt.Errorf("observer: %w", err)
		}
		for i := 0; i < n/2; i++ {
			a, b := ring[i], ring[n-1-i]
			if a == bye || b == bye {
				continue
			}
			if _, err := e.playMatch(ctx, a, b, fmt.Sprintf("RR%d", matchNum), round, false); err != nil {
				return "", err
			}
			matchNum++
		}
		// Rotate everything but the first seat.
		last := ring[n-1]
		copy(ring[2:], ring[1:n-1])
		ring[1] = last
	}

	return e.bestBy(func(s *Standing) [3]int { return [3]int{s.Points, s.GamesWon, 0} }), nil
}

// runSwiss plays min(MaxRounds, ceil(log2 n)) rounds of score-based pairings.
func (e *Engine) runSwiss(ctx context.Context) (string, error) {
	rounds := EstimateTotalRounds(Swiss, len(e.players), e.config.MaxRounds)
	for round := 1; round <= rounds; round++ {
		if err := e.observer.RoundStarted(round, fmt.Sprintf("Swiss round %d/%d", round, rounds)); err != nil {
			return "", fmt.Errorf("observer: %w", err)
		}
		pairings, byePlayer := e.swissPairings(round)
		if byePlayer != "" {
			s := e.standings[byePlayer]
			s.Points += 2
			s.Byes++
			slog.Info("swiss bye", "player", byePlayer, "round", round)
		}
		for i, p := range pairings {
			if _, err := e.playMatch(ctx, p[0], p[1], fmt.Sprintf("S%dM%d", round, i+1), round, false); err != nil {
				return "", err
			}
		}
	}
	return e.bestBy(func(s *Standing) [3]int { return [3]int{s.Points, s.GamesWon, s.Wins} }), nil
}

// swissPairings shuffles for round one; later rounds sort by points and
// games won and pair each leader with the first opponent not yet met,
// falling back to the next player when everyone has been met.
func (e *Engine) swissPairings(round int) ([][2]string, string) {
	order := e.Participants()
	if round == 1 {
		e.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	} else {
		sort.SliceStable(order, func(i, j int) bool {
			a, b := e.standings[order[i]], e.standings[order[j]]
			if a.Points != b.Points {
				return a.Points > b.Points
			}
			return a.GamesWon > b.GamesWon
		})
	}

	var pairings [][2]string
	unpaired := order
	for len(unpaired) >= 2 {
		first := unpaired[0]
		pick := 1
		if round > 1 {
			for i := 1; i < len(unpaired); i++ {
				if !e.standings[first].hasPlayed(unpaired[i]) {
					pick = i
					break
				}
			}
		}
		pairings = append(pairings, [2]string{first, unpaired[pick]})
		rest := make([]string, 0, len(unpaired)-2)
		rest = append(rest, unpaired[1:pick]...)
		unpaired = append(rest, unpaired[pick+1:]...)
	}

	if len(unpaired) == 1 {
		return pairings, unpaired[0]
	}
	return pairings, ""
}
