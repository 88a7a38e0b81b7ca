package service

import (
	"math/rand/v2"

	"live_contest/internal/domain/model"
)

// Dealer picks the next question for a participant uniformly at random among
// the ones they have not answered.
type Dealer struct {
	intn func(n int) int
}

func NewDealer() *Dealer {
	return &Dealer{intn: rand.IntN}
}

// Deal returns an unanswered question with its correct option stripped, or
// false when every question in key has been answered.
//
// A draw that lands on an answered question is discarded from the pool and
// redrawn, so the loop makes at most len(key.Questions) draws.
func (d *Dealer) Deal(key *model.AnswerKey, answered map[string]bool) (model.PublicQuestion, bool) {
	if key == nil || len(key.Questions) == 0 {
		return model.PublicQuestion{}, false
	}
	pool := make([]model.Question, len(key.Questions))
	copy(pool, key.Questions)

	for attempts := len(pool); attempts > 0 && len(pool) > 0; attempts-- {
		i := d.intn(len(pool))
		q := pool[i]
		if !answered[q.ID] {
			return q.Public(), true
		}
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return model.PublicQuestion{}, false
}
